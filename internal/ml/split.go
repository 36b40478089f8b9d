package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

var ErrStratify = errors.New("stratified split impossible")

type SplitRatios struct {
	Train float64 `json:"train"`
	Val   float64 `json:"val"`
	Test  float64 `json:"test"`
}

func DefaultSplitRatios() SplitRatios { return SplitRatios{Train: 0.70, Val: 0.15, Test: 0.15} }

type Split struct {
	Train []int
	Val   []int
	Test  []int
}

// StratifiedSplit partitions sample indices so that every label appears in
// each non-empty partition in roughly the requested proportion. A label
// with fewer examples than non-empty partitions fails with ErrStratify.
func StratifiedSplit(labels []string, r SplitRatios, seed uint64) (Split, error) {
	if len(labels) == 0 {
		return Split{}, fmt.Errorf("%w: empty corpus", ErrStratify)
	}
	if r.Train <= 0 || r.Val < 0 || r.Test < 0 {
		return Split{}, fmt.Errorf("invalid split ratios %+v", r)
	}
	total := r.Train + r.Val + r.Test
	r = SplitRatios{Train: r.Train / total, Val: r.Val / total, Test: r.Test / total}
	parts := 1
	if r.Val > 0 {
		parts++
	}
	if r.Test > 0 {
		parts++
	}

	byLabel := make(map[string][]int)
	for i, l := range labels {
		byLabel[l] = append(byLabel[l], i)
	}
	names := make([]string, 0, len(byLabel))
	for l := range byLabel {
		names = append(names, l)
	}
	sort.Strings(names)

	rng := rand.New(rand.NewPCG(seed, 0x5eed))
	var out Split
	for _, l := range names {
		idx := byLabel[l]
		if len(idx) < parts {
			return Split{}, fmt.Errorf("%w: category %q has %d examples, need at least %d", ErrStratify, l, len(idx), parts)
		}
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		nVal := allot(len(idx), r.Val)
		nTest := allot(len(idx), r.Test)
		nTrain := len(idx) - nVal - nTest
		for nTrain < 1 {
			if nVal >= nTest && nVal > 1 {
				nVal--
			} else {
				nTest--
			}
			nTrain = len(idx) - nVal - nTest
		}
		out.Train = append(out.Train, idx[:nTrain]...)
		out.Val = append(out.Val, idx[nTrain:nTrain+nVal]...)
		out.Test = append(out.Test, idx[nTrain+nVal:]...)
	}
	for _, p := range [][]int{out.Train, out.Val, out.Test} {
		rng.Shuffle(len(p), func(i, j int) { p[i], p[j] = p[j], p[i] })
	}
	return out, nil
}

func allot(n int, ratio float64) int {
	if ratio <= 0 {
		return 0
	}
	k := int(math.Round(float64(n) * ratio))
	if k < 1 {
		k = 1
	}
	return k
}
