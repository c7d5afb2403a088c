package types

import "time"

// Frame is one JPEG still captured from a camera device.
type Frame struct {
	Data      []byte    // JPEG bytes
	Width     int       // Pixel width of the encoded image
	Height    int       // Pixel height of the encoded image
	Number    uint64    // Sequential frame number within a camera session
	Timestamp time.Time // Capture timestamp
}

// Box is an axis-aligned rectangle in source-image pixel coordinates.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// DetectedObject is one detection from the remote object-detection service.
// IDs are 1-based within a single response; the whole set is replaced on
// every new frame's response.
type DetectedObject struct {
	ID         int     `json:"id"`
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
	Class      string  `json:"class,omitempty"`
}

// PerformanceMetrics carries per-response timing reported by the detection
// service. Fields are nil when neither the structured payload nor the
// free-text summary provided them.
type PerformanceMetrics struct {
	PreprocessMs  *float64 `json:"preprocess_ms,omitempty"`
	InferenceMs   *float64 `json:"inference_ms,omitempty"`
	PostprocessMs *float64 `json:"postprocess_ms,omitempty"`
	ImageShape    string   `json:"image_shape,omitempty"`
}

// InstructionStep is one unit of a task draft. The image is optional and
// never populated from server data.
type InstructionStep struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Image []byte `json:"-"`

	// HasImage mirrors Image for JSON consumers without shipping the bytes.
	HasImage bool `json:"has_image"`
}

// Task is the read model of a server-persisted task.
type Task struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Steps []string `json:"steps"`
}

// ResponseItem is one entry of the response log. Immutable once created.
type ResponseItem struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Text      string `json:"text,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
}
