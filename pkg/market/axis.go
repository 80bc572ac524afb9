package market

import "math"

// TargetGridLines is the number of gridlines the nice step aims for
const TargetGridLines = 5

// Axis is a value axis range aligned to Step
type Axis struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// BandStep is the grid step used when every value is equal
func BandStep(v float64) float64 {
	switch {
	case v >= 1000:
		return 100
	case v >= 100:
		return 50
	case v >= 10:
		return 10
	case v >= 1:
		return 1
	default:
		return 0.1
	}
}

// NiceStep rounds span/TargetGridLines up to 1, 2, 5 or 10 times a power of ten
func NiceStep(span float64) float64 {
	rough := span / TargetGridLines
	magnitude := math.Pow(10, math.Floor(math.Log10(rough)))
	switch normalized := rough / magnitude; {
	case normalized <= 1:
		return magnitude
	case normalized <= 2:
		return 2 * magnitude
	case normalized <= 5:
		return 5 * magnitude
	default:
		return 10 * magnitude
	}
}

// ScaleAxis fits an axis around the positive values: min and max are
// aligned to the step and padded by one step, and min never drops below
// zero. ok is false when no value is positive.
func ScaleAxis(values []float64) (axis Axis, ok bool) {
	positive := Positive(values)
	if len(positive) == 0 {
		return Axis{}, false
	}
	lo, hi := positive[0], positive[len(positive)-1]

	var step float64
	if span := hi - lo; span == 0 {
		step = BandStep(lo)
	} else {
		step = NiceStep(span)
	}

	return Axis{
		Min:  math.Max(0, math.Floor(lo/step)*step-step),
		Max:  math.Ceil(hi/step)*step + step,
		Step: step,
	}, true
}
