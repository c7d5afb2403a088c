package webui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okume/camassist/internal/camera"
	"github.com/okume/camassist/internal/metrics"
	"github.com/okume/camassist/internal/remote"
	"github.com/okume/camassist/pkg/types"
)

type stubRemote struct {
	mu         sync.Mutex
	setupCalls int
	setupTitle string
	setupSteps []types.InstructionStep
	saveCalls  int
	deleted    []string
	tasks      []types.Task
	listErr    error
	trackCalls int
	feedback   remote.Feedback
	detection  remote.Detection
	resetCalls int
}

func (s *stubRemote) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetCalls++
	return nil
}

func (s *stubRemote) SetupTask(ctx context.Context, title string, steps []types.InstructionStep) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setupCalls++
	s.setupTitle = title
	s.setupSteps = steps
	return "task registered", nil
}

func (s *stubRemote) ListTasks(ctx context.Context) ([]types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.tasks, nil
}

func (s *stubRemote) SaveTask(ctx context.Context, title string, steps []types.InstructionStep) ([]types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	s.tasks = append(s.tasks, types.Task{ID: fmt.Sprintf("task-%d", s.saveCalls), Title: title})
	return s.tasks, nil
}

func (s *stubRemote) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubRemote) SubmitTrackingFrame(ctx context.Context, jpegData []byte) (remote.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackCalls++
	return s.feedback, nil
}

func (s *stubRemote) DetectObjects(ctx context.Context, jpegData []byte) (remote.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detection, nil
}

func (s *stubRemote) trackCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackCalls
}

type stubSource struct {
	frames chan types.Frame
}

func (s *stubSource) Frames(ctx context.Context) (<-chan types.Frame, error) {
	out := make(chan types.Frame)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-s.frames:
				if !ok {
					return
				}
				select {
				case out <- f:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

type fixture struct {
	server *Server
	remote *stubRemote
	frames chan types.Frame
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	stub := &stubRemote{}
	frames := make(chan types.Frame, 4)
	factory := func(facing camera.Facing, w, h int) (camera.Source, error) {
		return &stubSource{frames: frames}, nil
	}

	m := metrics.New()
	cam := camera.NewController(factory, m)
	cam.SetSwitchDelay(0)

	srv := NewServer(DefaultConfig(), stub, cam, m)
	t.Cleanup(srv.Close)

	return &fixture{server: srv, remote: stub, frames: frames}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rec.Body.String())
	}
	return payload
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, want, rec.Body.String())
	}
}

// pushFrame feeds one frame and waits for the controller to buffer it.
func (f *fixture) pushFrame(t *testing.T) {
	t.Helper()
	f.frames <- types.Frame{Data: []byte{0xff, 0xd8, 0xff, 0xd9}, Width: 2, Height: 2, Number: 1, Timestamp: time.Now()}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := f.server.camera.CaptureFrame(); err == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("frame never reached the controller buffer")
}

func TestIndexServesPage(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/", nil)
	requireStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "Camera Task Assistant") {
		t.Fatal("index page missing title")
	}
}

func TestDraftStartsWithOneStep(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/draft", nil)
	requireStatus(t, rec, http.StatusOK)

	payload := decodeBody(t, rec)
	steps, ok := payload["steps"].([]any)
	if !ok || len(steps) != 1 {
		t.Fatalf("steps = %v, want exactly one", payload["steps"])
	}
}

func TestDraftStepLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/draft/steps", nil)
	requireStatus(t, rec, http.StatusOK)
	step := decodeBody(t, rec)["step"].(map[string]any)
	id := step["id"].(string)

	rec = f.do(t, http.MethodPut, "/api/draft/steps/"+id, map[string]string{"text": "pour water"})
	requireStatus(t, rec, http.StatusOK)

	// Unknown ids are a 404 while more than one step remains; the last-step
	// guard answers first otherwise.
	rec = f.do(t, http.MethodDelete, "/api/draft/steps/no-such-step", nil)
	requireStatus(t, rec, http.StatusNotFound)

	rec = f.do(t, http.MethodDelete, "/api/draft/steps/"+id, nil)
	requireStatus(t, rec, http.StatusOK)

	// One step remains; removing it is refused.
	payload := decodeBody(t, f.do(t, http.MethodGet, "/api/draft", nil))
	steps := payload["steps"].([]any)
	if len(steps) != 1 {
		t.Fatalf("steps after removal = %d, want 1", len(steps))
	}
	last := steps[0].(map[string]any)["id"].(string)
	rec = f.do(t, http.MethodDelete, "/api/draft/steps/"+last, nil)
	requireStatus(t, rec, http.StatusConflict)
}

func TestOversizedImageRejected(t *testing.T) {
	f := newFixture(t)

	payload := decodeBody(t, f.do(t, http.MethodGet, "/api/draft", nil))
	id := payload["steps"].([]any)[0].(map[string]any)["id"].(string)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "big.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(bytes.Repeat([]byte{0xab}, 6<<20)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/draft/steps/"+id+"/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	requireStatus(t, rec, http.StatusRequestEntityTooLarge)

	// The step keeps its image unset after the rejection.
	payload = decodeBody(t, f.do(t, http.MethodGet, "/api/draft", nil))
	step := payload["steps"].([]any)[0].(map[string]any)
	if step["has_image"].(bool) {
		t.Fatal("step has_image = true after rejected upload")
	}
}

func TestSetupValidationSkipsRemote(t *testing.T) {
	f := newFixture(t)

	// Empty title and empty step text.
	rec := f.do(t, http.MethodPost, "/api/draft/setup", nil)
	requireStatus(t, rec, http.StatusBadRequest)
	if msg := decodeBody(t, rec)["error"].(string); !strings.Contains(msg, "title") {
		t.Fatalf("error = %q, want title mentioned", msg)
	}
	if f.remote.setupCalls != 0 {
		t.Fatalf("setup calls = %d, want 0 on validation failure", f.remote.setupCalls)
	}
}

func TestSetupSubmitsDraft(t *testing.T) {
	f := newFixture(t)

	requireStatus(t, f.do(t, http.MethodPut, "/api/draft/title", map[string]string{"title": "Make tea"}), http.StatusOK)
	payload := decodeBody(t, f.do(t, http.MethodGet, "/api/draft", nil))
	id := payload["steps"].([]any)[0].(map[string]any)["id"].(string)
	requireStatus(t, f.do(t, http.MethodPut, "/api/draft/steps/"+id, map[string]string{"text": "boil water"}), http.StatusOK)

	rec := f.do(t, http.MethodPost, "/api/draft/setup", nil)
	requireStatus(t, rec, http.StatusOK)
	if msg := decodeBody(t, rec)["message"].(string); msg != "task registered" {
		t.Fatalf("message = %q", msg)
	}

	if f.remote.setupTitle != "Make tea" || len(f.remote.setupSteps) != 1 {
		t.Fatalf("remote got title=%q steps=%d", f.remote.setupTitle, len(f.remote.setupSteps))
	}
}

func TestTaskDeletePassesID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodDelete, "/api/tasks/abc-123", nil)
	requireStatus(t, rec, http.StatusOK)
	if len(f.remote.deleted) != 1 || f.remote.deleted[0] != "abc-123" {
		t.Fatalf("deleted = %v, want [abc-123]", f.remote.deleted)
	}
}

func TestTaskListRemoteFailure(t *testing.T) {
	f := newFixture(t)
	f.remote.listErr = fmt.Errorf("list tasks 500: boom")

	rec := f.do(t, http.MethodGet, "/api/tasks", nil)
	requireStatus(t, rec, http.StatusBadGateway)
	if decodeBody(t, rec)["error"].(string) == "" {
		t.Fatal("error payload missing")
	}
}

func TestTemplateLoad(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/draft/load", map[string]string{"template_id": "make-tea"})
	requireStatus(t, rec, http.StatusOK)

	payload := decodeBody(t, rec)
	if payload["title"].(string) != "Make tea" {
		t.Fatalf("title = %q", payload["title"])
	}
	if steps := payload["steps"].([]any); len(steps) != 4 {
		t.Fatalf("steps = %d, want 4", len(steps))
	}

	rec = f.do(t, http.MethodPost, "/api/draft/load", map[string]string{"template_id": "no-such"})
	requireStatus(t, rec, http.StatusNotFound)
}

func TestTrackingRequiresWebcam(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/tracking/start", nil)
	requireStatus(t, rec, http.StatusConflict)
	if msg := decodeBody(t, rec)["error"].(string); !strings.Contains(msg, "webcam") {
		t.Fatalf("error = %q", msg)
	}
}

func TestTrackingRecordsResponses(t *testing.T) {
	f := newFixture(t)
	f.remote.feedback = remote.Feedback{Text: "step 1 done"}

	requireStatus(t, f.do(t, http.MethodPost, "/api/webcam/start", map[string]string{"facing": "user"}), http.StatusOK)
	f.pushFrame(t)

	requireStatus(t, f.do(t, http.MethodPut, "/api/capture/interval", map[string]int{"interval_ms": 500}), http.StatusOK)
	requireStatus(t, f.do(t, http.MethodPost, "/api/tracking/start", nil), http.StatusOK)

	// Wait for a recorded response before stopping: stopping first would
	// invalidate the in-flight generation and discard it.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && f.server.responses.Len() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if f.remote.trackCount() == 0 {
		t.Fatal("no tracking frame was submitted")
	}
	items := f.server.responses.Items()
	if len(items) == 0 || items[0].Text != "step 1 done" {
		t.Fatalf("responses = %v, want feedback recorded", items)
	}

	requireStatus(t, f.do(t, http.MethodPost, "/api/tracking/stop", nil), http.StatusOK)
}

func TestWebcamStopHaltsLoops(t *testing.T) {
	f := newFixture(t)

	requireStatus(t, f.do(t, http.MethodPost, "/api/webcam/start", map[string]string{"facing": "user"}), http.StatusOK)
	f.pushFrame(t)
	requireStatus(t, f.do(t, http.MethodPost, "/api/tracking/start", nil), http.StatusOK)

	requireStatus(t, f.do(t, http.MethodPost, "/api/webcam/stop", nil), http.StatusOK)

	if f.server.tracking.Running() {
		t.Fatal("tracking loop still running after webcam stop")
	}
	if f.server.camera.Active() {
		t.Fatal("camera still active after stop")
	}
}

func TestCaptureIntervalGuards(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/capture/interval", map[string]int{"interval_ms": 100})
	requireStatus(t, rec, http.StatusBadRequest)

	rec = f.do(t, http.MethodPut, "/api/capture/interval", map[string]int{"interval_ms": 1000})
	requireStatus(t, rec, http.StatusOK)

	requireStatus(t, f.do(t, http.MethodPost, "/api/webcam/start", map[string]string{"facing": "user"}), http.StatusOK)
	f.pushFrame(t)
	requireStatus(t, f.do(t, http.MethodPost, "/api/detection/start", nil), http.StatusOK)

	rec = f.do(t, http.MethodPut, "/api/capture/interval", map[string]int{"interval_ms": 2000})
	requireStatus(t, rec, http.StatusConflict)
}

func TestDetectionsEmptyByDefault(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/detections", nil)
	requireStatus(t, rec, http.StatusOK)
	payload := decodeBody(t, rec)
	if objects := payload["objects"].([]any); len(objects) != 0 {
		t.Fatalf("objects = %v, want empty", objects)
	}
}

func TestStatusShape(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/status", nil)
	requireStatus(t, rec, http.StatusOK)
	payload := decodeBody(t, rec)

	for _, key := range []string{"webcam", "tracking", "detection", "draft", "responses", "timestamp"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("status payload missing %q", key)
		}
	}
	tracking := payload["tracking"].(map[string]any)
	if tracking["running"].(bool) {
		t.Fatal("tracking reported running on a fresh server")
	}
}

func TestResetForwardsToRemote(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/reset", nil)
	requireStatus(t, rec, http.StatusOK)
	if f.remote.resetCalls != 1 {
		t.Fatalf("reset calls = %d, want 1", f.remote.resetCalls)
	}
}
