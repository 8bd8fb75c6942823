// Package preprocess describes the image-adjustment variants swept while
// verifying that a QR code survives real-world scanning conditions.
package preprocess

import (
	"fmt"
	"math"
	"strings"
)

// Spec is one combination of image adjustments to apply before a decode
// attempt. A nil field leaves that axis untouched; the zero value is the
// unmodified image.
type Spec struct {
	Contrast   *float64
	Brightness *float64
	Blur       *float64
}

// IsIdentity reports whether the spec leaves the image unmodified apart
// from the uniform resize applied to every candidate.
func (s Spec) IsIdentity() bool {
	return s.Contrast == nil && s.Brightness == nil && s.Blur == nil
}

// String renders the spec for log output.
func (s Spec) String() string {
	if s.IsIdentity() {
		return "identity"
	}
	parts := make([]string, 0, 3)
	if s.Contrast != nil {
		parts = append(parts, fmt.Sprintf("contrast=%g", *s.Contrast))
	}
	if s.Brightness != nil {
		parts = append(parts, fmt.Sprintf("brightness=%g", *s.Brightness))
	}
	if s.Blur != nil {
		parts = append(parts, fmt.Sprintf("blur=%g", *s.Blur))
	}
	return strings.Join(parts, ",")
}

// Axes holds the per-axis value lists expanded into candidate specs. An
// empty list means that axis is not swept.
type Axes struct {
	Contrast   []float64
	Brightness []float64
	Blur       []float64
}

// Variants expands the axes into their cartesian product, contrast
// outermost and blur varying fastest. The order is deterministic for a
// given Axes value. It does not include the identity spec.
func Variants(axes Axes) ([]Spec, error) {
	if err := validateAxis("contrast", axes.Contrast, -100, 100); err != nil {
		return nil, err
	}
	if err := validateAxis("brightness", axes.Brightness, -100, 100); err != nil {
		return nil, err
	}
	if err := validateAxis("blur", axes.Blur, 0, math.MaxFloat64); err != nil {
		return nil, err
	}

	if len(axes.Contrast) == 0 && len(axes.Brightness) == 0 && len(axes.Blur) == 0 {
		return nil, nil
	}

	specs := []Spec{{}}
	specs = expandAxis(specs, axes.Contrast, func(s *Spec, v *float64) { s.Contrast = v })
	specs = expandAxis(specs, axes.Brightness, func(s *Spec, v *float64) { s.Brightness = v })
	specs = expandAxis(specs, axes.Blur, func(s *Spec, v *float64) { s.Blur = v })
	return specs, nil
}

// expandAxis multiplies the partial specs by one axis, the new axis varying
// fastest. An empty axis passes the partial specs through unchanged so it
// contributes no field.
func expandAxis(partial []Spec, values []float64, set func(*Spec, *float64)) []Spec {
	if len(values) == 0 {
		return partial
	}
	out := make([]Spec, 0, len(partial)*len(values))
	for _, base := range partial {
		for i := range values {
			spec := base
			set(&spec, &values[i])
			out = append(out, spec)
		}
	}
	return out
}

func validateAxis(name string, values []float64, min, max float64) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("preprocess: %s axis value %v is not finite", name, v)
		}
		if v < min || v > max {
			return fmt.Errorf("preprocess: %s axis value %g out of range [%g, %g]", name, v, min, max)
		}
	}
	return nil
}
