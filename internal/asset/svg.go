package asset

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DecodeSVG reads an SVG document's intrinsic size and counts its elements.
// Size comes from width/height, falling back to the viewBox.
func DecodeSVG(data []byte) (*Vector, error) {
	raw, err := Unwrap(data)
	if err != nil {
		return nil, fmt.Errorf("svg: %w", err)
	}

	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = false

	var (
		v     *Vector
		depth int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("svg: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if v == nil {
				if t.Name.Local != "svg" {
					return nil, fmt.Errorf("svg: root element is <%s>, want <svg>", t.Name.Local)
				}
				v, err = svgRoot(t)
				if err != nil {
					return nil, err
				}
			} else {
				v.Elements++
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}
	if v == nil {
		return nil, errors.New("svg: no <svg> element")
	}
	if depth != 0 {
		return nil, errors.New("svg: unbalanced document")
	}
	v.Digest = Digest(raw)
	return v, nil
}

func svgRoot(el xml.StartElement) (*Vector, error) {
	v := &Vector{Format: "svg"}
	var width, height, viewBox string
	for _, a := range el.Attr {
		switch a.Name.Local {
		case "width":
			width = a.Value
		case "height":
			height = a.Value
		case "viewBox":
			viewBox = a.Value
		}
	}
	v.Width, _ = parseLength(width)
	v.Height, _ = parseLength(height)
	if (v.Width <= 0 || v.Height <= 0) && viewBox != "" {
		f := strings.FieldsFunc(viewBox, func(r rune) bool { return r == ' ' || r == ',' })
		if len(f) != 4 {
			return nil, fmt.Errorf("svg: malformed viewBox %q", viewBox)
		}
		w, errW := strconv.ParseFloat(f[2], 64)
		h, errH := strconv.ParseFloat(f[3], 64)
		if errW != nil || errH != nil {
			return nil, fmt.Errorf("svg: malformed viewBox %q", viewBox)
		}
		if v.Width <= 0 {
			v.Width = w
		}
		if v.Height <= 0 {
			v.Height = h
		}
	}
	if v.Width <= 0 || v.Height <= 0 {
		return nil, errors.New("svg: document has no usable size")
	}
	return v, nil
}

// parseLength accepts plain numbers and px/pt lengths. Relative units are
// rejected so the caller falls back to the viewBox.
func parseLength(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasSuffix(s, "%") || strings.HasSuffix(s, "em") {
		return 0, false
	}
	scale := 1.0
	switch {
	case strings.HasSuffix(s, "px"):
		s = strings.TrimSuffix(s, "px")
	case strings.HasSuffix(s, "pt"):
		s = strings.TrimSuffix(s, "pt")
		scale = 4.0 / 3.0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f * scale, true
}
