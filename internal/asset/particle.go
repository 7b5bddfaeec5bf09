package asset

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// GradientKey is one colour stop over a particle's lifetime.
type GradientKey struct {
	At    float64   `yaml:"at"`    // 0..1 of lifetime
	Color []float64 `yaml:"color"` // rgba
}

// Particle is a decoded particle effect.
type Particle struct {
	Name     string        `yaml:"name"`
	Capacity int           `yaml:"capacity"` // max live particles
	Rate     float64       `yaml:"rate"`     // spawns per second
	Lifetime float64       `yaml:"lifetime"` // seconds
	Radius   float64       `yaml:"radius"`   // emission circle radius
	Speed    float64       `yaml:"speed"`
	Gradient []GradientKey `yaml:"gradient"`

	Digest string `yaml:"-"`
}

// DecodeParticle parses a YAML particle effect description.
func DecodeParticle(data []byte) (*Particle, error) {
	raw, err := Unwrap(data)
	if err != nil {
		return nil, fmt.Errorf("particle: %w", err)
	}
	p := &Particle{}
	if err := yaml.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("particle: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("particle %q: %w", p.Name, err)
	}
	p.Digest = Digest(raw)
	return p, nil
}

func (p *Particle) validate() error {
	switch {
	case p.Capacity <= 0:
		return errors.New("capacity must be positive")
	case p.Rate < 0:
		return errors.New("rate must not be negative")
	case p.Lifetime <= 0:
		return errors.New("lifetime must be positive")
	case p.Radius < 0:
		return errors.New("radius must not be negative")
	}
	last := -1.0
	for _, k := range p.Gradient {
		if k.At < 0 || k.At > 1 {
			return fmt.Errorf("gradient key at %g outside [0,1]", k.At)
		}
		if len(k.Color) != 4 {
			return fmt.Errorf("gradient key at %g: color needs 4 components, got %d", k.At, len(k.Color))
		}
		if k.At < last {
			return errors.New("gradient keys out of order")
		}
		last = k.At
	}
	return nil
}

// Extent is the radius the effect covers: emission radius plus the distance a
// particle travels in its lifetime.
func (p *Particle) Extent() float64 {
	return p.Radius + p.Speed*p.Lifetime
}
