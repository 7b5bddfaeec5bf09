package asset

import "fmt"

// Vector is a decoded vector asset (static SVG or animated Lottie).
type Vector struct {
	Format   string  // "svg" or "lottie"
	Width    float64 // intrinsic size in scene units
	Height   float64
	Elements int // drawable elements (svg) or layers (lottie)

	// Animation timing; zero for static assets.
	FrameRate float64
	InPoint   float64
	OutPoint  float64

	Digest string
}

// Duration returns the animation length in seconds, 0 for static assets.
func (v *Vector) Duration() float64 {
	if v.FrameRate <= 0 || v.OutPoint <= v.InPoint {
		return 0
	}
	return (v.OutPoint - v.InPoint) / v.FrameRate
}

func (v *Vector) String() string {
	return fmt.Sprintf("%s %gx%g (%d elements)", v.Format, v.Width, v.Height, v.Elements)
}
