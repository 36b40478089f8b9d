package classifier

import (
	"fmt"
	"math"

	"doctag/internal/config"
	"doctag/internal/taxonomy"
)

type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Curve is a monotonic piecewise-linear map. Inputs below the first point
// take its y, inputs beyond the last point take the last y, and the output
// is clipped to [0,1].
type Curve struct {
	xs []float64
	ys []float64
}

func NewCurve(points []config.CurvePoint) (Curve, error) {
	if len(points) < 2 {
		return Curve{}, fmt.Errorf("curve needs at least two points, got %d", len(points))
	}
	c := Curve{xs: make([]float64, len(points)), ys: make([]float64, len(points))}
	for i, p := range points {
		if i > 0 && (p.X <= points[i-1].X || p.Y < points[i-1].Y) {
			return Curve{}, fmt.Errorf("curve point %d breaks monotonicity", i)
		}
		c.xs[i], c.ys[i] = p.X, p.Y
	}
	return c, nil
}

func mustCurve(points []config.CurvePoint) Curve {
	c, err := NewCurve(points)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Curve) Apply(x float64) float64 {
	if len(c.xs) == 0 || math.IsNaN(x) {
		return 0
	}
	var y float64
	switch {
	case x <= c.xs[0]:
		y = c.ys[0]
	case x >= c.xs[len(c.xs)-1]:
		y = c.ys[len(c.ys)-1]
	default:
		for i := 1; i < len(c.xs); i++ {
			if x <= c.xs[i] {
				t := (x - c.xs[i-1]) / (c.xs[i] - c.xs[i-1])
				y = c.ys[i-1] + t*(c.ys[i]-c.ys[i-1])
				break
			}
		}
	}
	return clip01(y)
}

func clip01(x float64) float64 {
	if x < 0 || math.IsNaN(x) {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Calibrator turns raw strategy scores into comparable confidences and
// discrete levels.
type Calibrator struct {
	Keyword    Curve
	Margin     Curve
	Thresholds taxonomy.Thresholds
}

func NewCalibrator(cfg config.CalibrationConfig, th taxonomy.Thresholds) (Calibrator, error) {
	kw, err := NewCurve(cfg.Keyword)
	if err != nil {
		return Calibrator{}, fmt.Errorf("keyword curve: %w", err)
	}
	mg, err := NewCurve(cfg.Margin)
	if err != nil {
		return Calibrator{}, fmt.Errorf("margin curve: %w", err)
	}
	return Calibrator{Keyword: kw, Margin: mg, Thresholds: th}, nil
}

// DefaultCalibrator uses the stock curves and taxonomy thresholds.
func DefaultCalibrator(th taxonomy.Thresholds) Calibrator {
	d := config.Defaults().Calibration
	return Calibrator{Keyword: mustCurve(d.Keyword), Margin: mustCurve(d.Margin), Thresholds: th}
}

func (c Calibrator) FromKeywordScore(score float64) float64 { return c.Keyword.Apply(score) }

func (c Calibrator) FromMargin(margin float64) float64 { return c.Margin.Apply(margin) }

func (c Calibrator) Level(confidence float64) Level {
	switch {
	case confidence >= c.Thresholds.High:
		return LevelHigh
	case confidence >= c.Thresholds.Medium:
		return LevelMedium
	default:
		return LevelLow
	}
}
