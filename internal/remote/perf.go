package remote

import (
	"regexp"
	"strconv"

	"github.com/okume/camassist/pkg/types"
)

// rawPerf is the structured performance payload some service versions send.
type rawPerf struct {
	PreprocessMs  *float64 `json:"preprocess_ms"`
	InferenceMs   *float64 `json:"inference_ms"`
	PostprocessMs *float64 `json:"postprocess_ms"`
	ImageShape    string   `json:"image_shape"`
}

// Older service versions only report a free-text summary. The fallback
// grammar is:
//
//	"<float>ms preprocess, <float>ms inference, <float>ms postprocess"
//	"shape (<dims>)"
var (
	timingPattern = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)ms preprocess,\s*([0-9]+(?:\.[0-9]+)?)ms inference,\s*([0-9]+(?:\.[0-9]+)?)ms postprocess`)
	shapePattern  = regexp.MustCompile(`shape \(([^)]*)\)`)
)

// parsePerformance prefers the structured payload and falls back to pattern
// matching the summary string. It returns nil when neither source yields a
// single field.
func parsePerformance(structured *rawPerf, summary string) *types.PerformanceMetrics {
	if structured != nil {
		return &types.PerformanceMetrics{
			PreprocessMs:  structured.PreprocessMs,
			InferenceMs:   structured.InferenceMs,
			PostprocessMs: structured.PostprocessMs,
			ImageShape:    structured.ImageShape,
		}
	}
	if summary == "" {
		return nil
	}

	var metrics types.PerformanceMetrics
	matched := false

	if m := timingPattern.FindStringSubmatch(summary); m != nil {
		metrics.PreprocessMs = parseFloat(m[1])
		metrics.InferenceMs = parseFloat(m[2])
		metrics.PostprocessMs = parseFloat(m[3])
		matched = true
	}
	if m := shapePattern.FindStringSubmatch(summary); m != nil {
		metrics.ImageShape = m[1]
		matched = true
	}

	if !matched {
		return nil
	}
	return &metrics
}

func parseFloat(s string) *float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
