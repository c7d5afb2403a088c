// Package remote is the client for the inference service the assistant
// talks to. It is a stateless request/response mapping: one HTTP call per
// user action, no retry, no caching.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/okume/camassist/pkg/types"
)

// DefaultUserID is sent when no user id is configured. The service does not
// authenticate; the id only partitions session state.
const DefaultUserID = "local-user"

// Feedback is the normalized reply to a tracking-frame submission. The
// service answers either {response} or {result, image_url}; both collapse
// into one text plus an optional image URL.
type Feedback struct {
	Text     string
	ImageURL string
}

// Detection is the parsed reply to an object-detection submission.
type Detection struct {
	Objects []types.DetectedObject
	Metrics *types.PerformanceMetrics
}

// Client issues calls against a fixed base URL.
type Client struct {
	baseURL string
	userID  string
	httpc   *http.Client
}

// New creates a client for the given service base URL.
func New(baseURL, userID string) *Client {
	if userID == "" {
		userID = DefaultUserID
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Reset clears the service-side session state.
func (c *Client) Reset(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/reset/", nil)
	if err != nil {
		return err
	}
	return c.doDiscard(req, "reset")
}

// SetupTask submits the task title and steps (with any attached images) as
// the active instruction set. Returns the service's optional message.
func (c *Client) SetupTask(ctx context.Context, title string, steps []types.InstructionStep) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("user_id", c.userID)
	_ = mw.WriteField("task_title", title)
	for i, step := range steps {
		_ = mw.WriteField("instructions", step.Text)
		if len(step.Image) > 0 {
			part, err := mw.CreateFormFile(fmt.Sprintf("step_%d_image", i+1), fmt.Sprintf("step_%d.jpg", i+1))
			if err != nil {
				return "", err
			}
			if _, err := part.Write(step.Image); err != nil {
				return "", err
			}
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/instruction/setup/", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var raw struct {
		Message string `json:"message"`
	}
	if err := c.doJSON(req, "setup", &raw); err != nil {
		return "", err
	}
	return raw.Message, nil
}

// ListTasks fetches the server-persisted task list.
func (c *Client) ListTasks(ctx context.Context) ([]types.Task, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/instruction/tasks/", nil)
	if err != nil {
		return nil, err
	}
	var tasks []types.Task
	if err := c.doJSON(req, "list tasks", &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// SaveTask persists the title and step texts server-side and returns the
// refreshed task list.
func (c *Client) SaveTask(ctx context.Context, title string, steps []types.InstructionStep) ([]types.Task, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("task_title", title)
	for _, step := range steps {
		_ = mw.WriteField("instructions", step.Text)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/instruction/tasks/", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var tasks []types.Task
	if err := c.doJSON(req, "save task", &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// DeleteTask removes one persisted task by id.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/instruction/tasks/"+id, nil)
	if err != nil {
		return err
	}
	return c.doDiscard(req, "delete task")
}

// SubmitTrackingFrame uploads one JPEG frame against the active task and
// returns the normalized feedback.
func (c *Client) SubmitTrackingFrame(ctx context.Context, jpegData []byte) (Feedback, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("user_id", c.userID)
	part, err := mw.CreateFormFile("frame", "frame.jpg")
	if err != nil {
		return Feedback{}, err
	}
	if _, err := part.Write(jpegData); err != nil {
		return Feedback{}, err
	}
	if err := mw.Close(); err != nil {
		return Feedback{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/instruction/track/", &buf)
	if err != nil {
		return Feedback{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var raw struct {
		Response string `json:"response"`
		Result   string `json:"result"`
		ImageURL string `json:"image_url"`
	}
	if err := c.doJSON(req, "track", &raw); err != nil {
		return Feedback{}, err
	}

	text := raw.Response
	if text == "" {
		text = raw.Result
	}
	return Feedback{Text: text, ImageURL: raw.ImageURL}, nil
}

// DetectObjects uploads one JPEG frame to the object-detection endpoint.
func (c *Client) DetectObjects(ctx context.Context, jpegData []byte) (Detection, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return Detection{}, err
	}
	if _, err := part.Write(jpegData); err != nil {
		return Detection{}, err
	}
	if err := mw.Close(); err != nil {
		return Detection{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/yolo/detect/", &buf)
	if err != nil {
		return Detection{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var raw struct {
		BoundingBoxes [][]float64 `json:"bounding_boxes"`
		Confidences   []float64   `json:"confidences"`
		Classes       []string    `json:"classes"`
		Performance   *rawPerf    `json:"performance_metrics"`
		Summary       string      `json:"summary"`
	}
	if err := c.doJSON(req, "detect", &raw); err != nil {
		return Detection{}, err
	}

	objects := make([]types.DetectedObject, 0, len(raw.BoundingBoxes))
	for i, box := range raw.BoundingBoxes {
		if len(box) < 4 || i >= len(raw.Confidences) {
			continue
		}
		obj := types.DetectedObject{
			ID:         len(objects) + 1,
			Box:        types.Box{X1: box[0], Y1: box[1], X2: box[2], Y2: box[3]},
			Confidence: raw.Confidences[i],
		}
		if i < len(raw.Classes) {
			obj.Class = raw.Classes[i]
		}
		objects = append(objects, obj)
	}

	return Detection{
		Objects: objects,
		Metrics: parsePerformance(raw.Performance, raw.Summary),
	}, nil
}

func (c *Client) doJSON(req *http.Request, action string, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %d: %s", action, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: bad JSON: %w", action, err)
	}
	return nil
}

func (c *Client) doDiscard(req *http.Request, action string) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %d: %s", action, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
