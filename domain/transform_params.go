package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ParseTransformParams reads width, height, quality and format from query
// values. Empty values are treated as absent.
func ParseTransformParams(q url.Values) (TransformParams, error) {
	var p TransformParams

	width, err := parsePositiveInt(q.Get("width"), "width")
	if err != nil {
		return p, err
	}
	height, err := parsePositiveInt(q.Get("height"), "height")
	if err != nil {
		return p, err
	}
	p.Width, p.Height = width, height

	if raw := strings.TrimSpace(q.Get("quality")); raw != "" {
		quality, err := strconv.Atoi(raw)
		if err != nil || quality < 0 || quality > 100 {
			return p, fmt.Errorf("quality must be an integer between 0 and 100, got %q", raw)
		}
		p.Quality = &quality
	}

	p.Format = strings.ToLower(strings.TrimSpace(q.Get("format")))
	return p, nil
}

func parsePositiveInt(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
	}
	return v, nil
}
