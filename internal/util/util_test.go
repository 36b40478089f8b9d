package util

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeTextRemovesNulAndControls(t *testing.T) {
	in := "ab\x00cd\x01\x02\n\txy"
	require.Equal(t, "abcd\n\txy", SanitizeText(in))
}

func TestPreviewTruncatesWithoutEllipsis(t *testing.T) {
	in := strings.Repeat("á", 250)
	out := Preview(in, 200)
	require.Equal(t, 200, len([]rune(out)))
	require.False(t, strings.HasSuffix(out, "..."))
}

func TestAppendJSONLineConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.jsonl")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, AppendJSONLine(path, map[string]int{"n": i}))
		}(i)
	}
	wg.Wait()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 20)
	for _, l := range lines {
		require.True(t, strings.HasPrefix(l, `{"n":`))
	}
}

func TestWriteJSONAtomicLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meta.json")
	require.NoError(t, WriteJSONAtomic(path, map[string]string{"a": "b"}))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "meta.json", entries[0].Name())
}

func TestReadTextTrimmedMissing(t *testing.T) {
	s, err := ReadTextTrimmed(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	require.Empty(t, s)
}
