package remote

import (
	"testing"
)

func TestParsePerformanceStructuredWins(t *testing.T) {
	pre := 1.5
	structured := &rawPerf{PreprocessMs: &pre, ImageShape: "1, 3, 640, 640"}
	got := parsePerformance(structured, "2.0ms preprocess, 9.1ms inference, 0.7ms postprocess")
	if got == nil {
		t.Fatal("parsePerformance() = nil")
	}
	if got.PreprocessMs == nil || *got.PreprocessMs != 1.5 {
		t.Fatalf("PreprocessMs = %v, want 1.5 from structured payload", got.PreprocessMs)
	}
	if got.InferenceMs != nil {
		t.Fatalf("InferenceMs = %v, want nil (absent from structured payload)", *got.InferenceMs)
	}
	if got.ImageShape != "1, 3, 640, 640" {
		t.Fatalf("ImageShape = %q", got.ImageShape)
	}
}

func TestParsePerformanceSummaryFallback(t *testing.T) {
	summary := "0 objects, 2.4ms preprocess, 11.3ms inference, 0.9ms postprocess per image at shape (1, 3, 480, 640)"
	got := parsePerformance(nil, summary)
	if got == nil {
		t.Fatal("parsePerformance() = nil")
	}
	if got.PreprocessMs == nil || *got.PreprocessMs != 2.4 {
		t.Fatalf("PreprocessMs = %v, want 2.4", got.PreprocessMs)
	}
	if got.InferenceMs == nil || *got.InferenceMs != 11.3 {
		t.Fatalf("InferenceMs = %v, want 11.3", got.InferenceMs)
	}
	if got.PostprocessMs == nil || *got.PostprocessMs != 0.9 {
		t.Fatalf("PostprocessMs = %v, want 0.9", got.PostprocessMs)
	}
	if got.ImageShape != "1, 3, 480, 640" {
		t.Fatalf("ImageShape = %q", got.ImageShape)
	}
}

func TestParsePerformanceShapeOnly(t *testing.T) {
	got := parsePerformance(nil, "image at shape (640, 480)")
	if got == nil {
		t.Fatal("parsePerformance() = nil")
	}
	if got.PreprocessMs != nil || got.InferenceMs != nil || got.PostprocessMs != nil {
		t.Fatal("timing fields must stay nil when the summary has no timings")
	}
	if got.ImageShape != "640, 480" {
		t.Fatalf("ImageShape = %q", got.ImageShape)
	}
}

func TestParsePerformanceNoMatch(t *testing.T) {
	if got := parsePerformance(nil, "all good"); got != nil {
		t.Fatalf("parsePerformance() = %+v, want nil for unmatched summary", got)
	}
	if got := parsePerformance(nil, ""); got != nil {
		t.Fatalf("parsePerformance() = %+v, want nil for empty summary", got)
	}
}
