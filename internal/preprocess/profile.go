package preprocess

import "fmt"

// Profile is a named tolerance level controlling how many variants are
// swept per image. Higher tolerance means more attempts and a higher chance
// of a successful decode at proportionally higher cost.
type Profile struct {
	Name string
	Axes Axes
}

// Profile names accepted by the configuration surface.
const (
	ToleranceNone   = "none"
	ToleranceMedium = "medium"
	ToleranceHigh   = "high"
)

// The axis lists are tuned so the advertised attempt count matches the
// actual candidate count: none tries 1, medium tries 9 (2x2x2+1), high
// tries 25 (4x2x3+1).
var profiles = map[string]Axes{
	ToleranceNone: {},
	ToleranceMedium: {
		Contrast:   []float64{-20, 20},
		Brightness: []float64{-15, 15},
		Blur:       []float64{0.7, 1.4},
	},
	ToleranceHigh: {
		Contrast:   []float64{-30, -15, 15, 30},
		Brightness: []float64{-20, 20},
		Blur:       []float64{0.6, 1.2, 1.8},
	},
}

// ProfileByName resolves a tolerance label to its profile.
func ProfileByName(name string) (Profile, error) {
	axes, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("preprocess: unknown tolerance profile %q", name)
	}
	return Profile{Name: name, Axes: axes}, nil
}

// Candidates returns the full candidate list for the profile: the identity
// spec followed by the cartesian product of the axis lists. The identity
// spec is always present, so tolerance none yields exactly one candidate.
func (p Profile) Candidates() ([]Spec, error) {
	variants, err := Variants(p.Axes)
	if err != nil {
		return nil, err
	}
	return append([]Spec{{}}, variants...), nil
}
