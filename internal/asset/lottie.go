package asset

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const lottieSchemaURL = "canvasdock://schemas/lottie.json"

// lottieSchema covers the top-level fields the scene relies on.
const lottieSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["v", "fr", "ip", "op", "w", "h", "layers"],
  "properties": {
    "v":      {"type": "string"},
    "nm":     {"type": "string"},
    "fr":     {"type": "number", "exclusiveMinimum": 0},
    "ip":     {"type": "number"},
    "op":     {"type": "number"},
    "w":      {"type": "number", "exclusiveMinimum": 0},
    "h":      {"type": "number", "exclusiveMinimum": 0},
    "layers": {"type": "array", "items": {"type": "object"}}
  }
}`

var lottieValidator = jsonschema.MustCompileString(lottieSchemaURL, lottieSchema)

type lottieDoc struct {
	Version   string            `json:"v"`
	Name      string            `json:"nm"`
	FrameRate float64           `json:"fr"`
	InPoint   float64           `json:"ip"`
	OutPoint  float64           `json:"op"`
	Width     float64           `json:"w"`
	Height    float64           `json:"h"`
	Layers    []json.RawMessage `json:"layers"`
}

// DecodeLottie validates a Lottie JSON document and reads its size and timing.
func DecodeLottie(data []byte) (*Vector, error) {
	raw, err := Unwrap(data)
	if err != nil {
		return nil, fmt.Errorf("lottie: %w", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("lottie: %w", err)
	}
	if err := lottieValidator.Validate(generic); err != nil {
		return nil, fmt.Errorf("lottie: %w", err)
	}

	var doc lottieDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("lottie: %w", err)
	}
	if doc.OutPoint < doc.InPoint {
		return nil, fmt.Errorf("lottie: out point %g before in point %g", doc.OutPoint, doc.InPoint)
	}
	return &Vector{
		Format:    "lottie",
		Width:     doc.Width,
		Height:    doc.Height,
		Elements:  len(doc.Layers),
		FrameRate: doc.FrameRate,
		InPoint:   doc.InPoint,
		OutPoint:  doc.OutPoint,
		Digest:    Digest(raw),
	}, nil
}
