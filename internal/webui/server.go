// Package webui serves the assistant's browser interface: the annotated
// MJPEG preview, the task draft editor, and the REST surface that drives
// the camera and the periodic capture loops.
package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/okume/camassist/internal/camera"
	"github.com/okume/camassist/internal/frame"
	"github.com/okume/camassist/internal/logger"
	"github.com/okume/camassist/internal/metrics"
	"github.com/okume/camassist/internal/remote"
	"github.com/okume/camassist/internal/responselog"
	"github.com/okume/camassist/internal/task"
	"github.com/okume/camassist/internal/track"
	"github.com/okume/camassist/pkg/types"
)

// RemoteService is the slice of the inference client the UI depends on.
type RemoteService interface {
	Reset(ctx context.Context) error
	SetupTask(ctx context.Context, title string, steps []types.InstructionStep) (string, error)
	ListTasks(ctx context.Context) ([]types.Task, error)
	SaveTask(ctx context.Context, title string, steps []types.InstructionStep) ([]types.Task, error)
	DeleteTask(ctx context.Context, id string) error
	SubmitTrackingFrame(ctx context.Context, jpegData []byte) (remote.Feedback, error)
	DetectObjects(ctx context.Context, jpegData []byte) (remote.Detection, error)
}

// detectionState is the latest object-detection result. The whole set is
// replaced on every applied response and cleared when detection stops.
type detectionState struct {
	mu      sync.Mutex
	objects []types.DetectedObject
	perf    *types.PerformanceMetrics
	updated time.Time
}

// Server wires the camera, draft, capture loops, and remote client behind
// the HTTP surface.
type Server struct {
	cfg         Config
	remote      RemoteService
	camera      *camera.Controller
	draft       *task.Draft
	responses   *responselog.Log
	metrics     *metrics.Metrics
	tracking    *track.Loop
	detection   *track.Loop
	broadcaster *FrameBroadcaster
	detections  detectionState
}

// NewServer returns a configured UI server. The broadcaster starts
// immediately; the capture loops start on demand.
func NewServer(cfg Config, svc RemoteService, cam *camera.Controller, m *metrics.Metrics) *Server {
	if cfg.StreamInterval <= 0 {
		cfg.StreamInterval = DefaultConfig().StreamInterval
	}
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = DefaultConfig().KeepaliveInterval
	}
	if cfg.CaptureInterval <= 0 {
		cfg.CaptureInterval = DefaultConfig().CaptureInterval
	}

	s := &Server{
		cfg:       cfg,
		remote:    svc,
		camera:    cam,
		draft:     task.NewDraft(),
		responses: responselog.New(),
		metrics:   m,
	}
	s.tracking = track.NewLoop("tracking", s.captureJPEG, s.submitTracking)
	s.detection = track.NewLoop("detection", s.captureJPEG, s.submitDetection)
	_ = s.tracking.SetInterval(cfg.CaptureInterval)
	_ = s.detection.SetInterval(cfg.CaptureInterval)

	s.broadcaster = NewFrameBroadcaster(s.renderFrame, cfg.StreamInterval)
	s.broadcaster.Start()
	return s
}

// Close stops the capture loops, the broadcaster, and the camera stream.
func (s *Server) Close() {
	s.tracking.Stop()
	s.detection.Stop()
	s.broadcaster.Stop()
	s.camera.Stop()
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /stream", s.handleStream)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /api/status", s.handleStatus)

	mux.HandleFunc("POST /api/webcam/start", s.handleWebcamStart)
	mux.HandleFunc("POST /api/webcam/stop", s.handleWebcamStop)
	mux.HandleFunc("POST /api/webcam/switch", s.handleWebcamSwitch)

	mux.HandleFunc("GET /api/draft", s.handleDraftGet)
	mux.HandleFunc("PUT /api/draft/title", s.handleDraftTitle)
	mux.HandleFunc("POST /api/draft/steps", s.handleStepAdd)
	mux.HandleFunc("PUT /api/draft/steps/{id}", s.handleStepUpdate)
	mux.HandleFunc("DELETE /api/draft/steps/{id}", s.handleStepRemove)
	mux.HandleFunc("POST /api/draft/steps/{id}/image", s.handleStepImageAttach)
	mux.HandleFunc("DELETE /api/draft/steps/{id}/image", s.handleStepImageRemove)
	mux.HandleFunc("POST /api/draft/load", s.handleDraftLoad)
	mux.HandleFunc("POST /api/draft/setup", s.handleDraftSetup)
	mux.HandleFunc("GET /api/templates", s.handleTemplates)

	mux.HandleFunc("GET /api/tasks", s.handleTasksList)
	mux.HandleFunc("POST /api/tasks", s.handleTasksSave)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleTaskDelete)

	mux.HandleFunc("POST /api/tracking/start", s.handleTrackingStart)
	mux.HandleFunc("POST /api/tracking/stop", s.handleTrackingStop)
	mux.HandleFunc("POST /api/detection/start", s.handleDetectionStart)
	mux.HandleFunc("POST /api/detection/stop", s.handleDetectionStop)
	mux.HandleFunc("PUT /api/capture/interval", s.handleCaptureInterval)

	mux.HandleFunc("GET /api/detections", s.handleDetections)
	mux.HandleFunc("GET /api/responses", s.handleResponses)
	mux.HandleFunc("DELETE /api/responses", s.handleResponsesClear)
	mux.HandleFunc("GET /api/responses/stream", s.handleResponsesStream)

	mux.HandleFunc("POST /api/reset", s.handleReset)

	return mux
}

// --- capture loop plumbing ---

func (s *Server) captureJPEG() ([]byte, error) {
	f, err := s.camera.CaptureFrame()
	if err != nil {
		return nil, err
	}
	s.metrics.FramesCaptured.Add(1)
	return f.Data, nil
}

func (s *Server) submitTracking(ctx context.Context, gen uint64, jpegData []byte) {
	s.metrics.TrackingSubmits.Add(1)
	start := time.Now()
	fb, err := s.remote.SubmitTrackingFrame(ctx, jpegData)
	s.metrics.ObserveSubmit(start)
	if err != nil {
		s.metrics.TransportErrors.Add(1)
		logger.Warn("WebUI", "Tracking submit failed: %v", err)
		return
	}
	if !s.tracking.Current(gen) {
		// The loop was stopped while this frame was on the wire.
		s.metrics.StaleDiscarded.Add(1)
		logger.Debug("WebUI", "Discarded stale tracking response")
		return
	}
	s.responses.Record(fb.Text, fb.ImageURL)
	s.metrics.ResponsesRecorded.Add(1)
}

func (s *Server) submitDetection(ctx context.Context, gen uint64, jpegData []byte) {
	s.metrics.DetectionSubmits.Add(1)
	start := time.Now()
	det, err := s.remote.DetectObjects(ctx, jpegData)
	s.metrics.ObserveSubmit(start)
	if err != nil {
		s.metrics.TransportErrors.Add(1)
		logger.Warn("WebUI", "Detection submit failed: %v", err)
		return
	}
	if !s.detection.Current(gen) {
		s.metrics.StaleDiscarded.Add(1)
		logger.Debug("WebUI", "Discarded stale detection response")
		return
	}

	s.detections.mu.Lock()
	s.detections.objects = det.Objects
	s.detections.perf = det.Metrics
	s.detections.updated = time.Now()
	s.detections.mu.Unlock()
}

func (s *Server) detectionObjects() []types.DetectedObject {
	s.detections.mu.Lock()
	defer s.detections.mu.Unlock()
	objects := make([]types.DetectedObject, len(s.detections.objects))
	copy(objects, s.detections.objects)
	return objects
}

func (s *Server) clearDetections() {
	s.detections.mu.Lock()
	s.detections.objects = nil
	s.detections.perf = nil
	s.detections.updated = time.Time{}
	s.detections.mu.Unlock()
}

// renderFrame produces one annotated JPEG for the stream, or nil when no
// camera frame is available (the stream shows the idle card instead).
func (s *Server) renderFrame() []byte {
	f, err := s.camera.CaptureFrame()
	if err != nil {
		return nil
	}

	objects := s.detectionObjects()
	start := time.Now()
	annotated, err := frame.Annotate(f.Data, objects)
	if err != nil {
		s.metrics.AnnotateErrors.Add(1)
		logger.Warn("WebUI", "Frame annotation failed: %v", err)
		return f.Data
	}
	s.metrics.ObserveAnnotate(time.Since(start))
	return annotated
}

// --- page and streams ---

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.metrics.StreamClients.Add(1)
	defer func() {
		// Decrement without going below zero on racing disconnects.
		for {
			n := s.metrics.StreamClients.Load()
			if n == 0 || s.metrics.StreamClients.CompareAndSwap(n, n-1) {
				return
			}
		}
	}()

	id, frameCh := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(id)
	streamMJPEGFromChannel(w, frameCh)
}

func (s *Server) handleResponsesStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, itemCh := s.responses.Subscribe()
	defer s.responses.Unsubscribe(id)

	keepalive := time.NewTicker(s.cfg.KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case item, open := <-itemCh:
			if !open {
				return
			}
			if err := writeSSE(w, item); err != nil {
				logger.Debug("SSE", "Client disconnected during event write: %v", err)
				return
			}
			flusher.Flush()
		case <-keepalive.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				logger.Debug("SSE", "Client disconnected during keepalive: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}

// --- status ---

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	title, steps := s.draft.Snapshot()
	s.detections.mu.Lock()
	objectCount := len(s.detections.objects)
	s.detections.mu.Unlock()

	payload := map[string]any{
		"webcam": s.camera.Stats(),
		"tracking": map[string]any{
			"running":     s.tracking.Running(),
			"interval_ms": s.tracking.Interval().Milliseconds(),
		},
		"detection": map[string]any{
			"running":     s.detection.Running(),
			"interval_ms": s.detection.Interval().Milliseconds(),
			"objects":     objectCount,
		},
		"draft": map[string]any{
			"title": title,
			"steps": len(steps),
		},
		"responses":      s.responses.Len(),
		"stream_clients": s.broadcaster.ClientCount(),
		"timestamp":      float64(time.Now().Unix()),
	}
	writeJSON(w, payload)
}

// --- webcam ---

func (s *Server) handleWebcamStart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Facing string `json:"facing"`
	}
	if err := decodeJSON(r, &body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.camera.Start(camera.Facing(body.Facing), s.cfg.IdealWidth, s.cfg.IdealHeight); err != nil {
		writeError(w, cameraStatus(err), err.Error())
		return
	}
	writeJSON(w, map[string]any{"message": "webcam started", "webcam": s.camera.Stats()})
}

func (s *Server) handleWebcamStop(w http.ResponseWriter, r *http.Request) {
	// Stopping the camera also stops any loop that depends on it.
	s.tracking.Stop()
	s.detection.Stop()
	s.clearDetections()
	s.camera.Stop()
	writeJSON(w, map[string]any{"message": "webcam stopped"})
}

func (s *Server) handleWebcamSwitch(w http.ResponseWriter, r *http.Request) {
	if err := s.camera.SwitchFacing(); err != nil {
		writeError(w, cameraStatus(err), err.Error())
		return
	}
	writeJSON(w, map[string]any{"message": "facing switched", "webcam": s.camera.Stats()})
}

func cameraStatus(err error) int {
	switch {
	case errors.Is(err, camera.ErrAlreadyActive), errors.Is(err, camera.ErrNotActive):
		return http.StatusConflict
	case errors.Is(err, camera.ErrPermissionDenied):
		return http.StatusForbidden
	default:
		return http.StatusBadGateway
	}
}

// --- draft ---

func (s *Server) handleDraftGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.draftPayload())
}

func (s *Server) draftPayload() map[string]any {
	title, steps := s.draft.Snapshot()
	return map[string]any{"title": title, "steps": steps}
}

func (s *Server) handleDraftTitle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.draft.SetTitle(body.Title)
	writeJSON(w, s.draftPayload())
}

func (s *Server) handleStepAdd(w http.ResponseWriter, r *http.Request) {
	step := s.draft.AddStep()
	writeJSON(w, map[string]any{"step": step, "draft": s.draftPayload()})
}

func (s *Server) handleStepUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.draft.UpdateStepText(r.PathValue("id"), body.Text); err != nil {
		writeError(w, draftStatus(err), err.Error())
		return
	}
	writeJSON(w, s.draftPayload())
}

func (s *Server) handleStepRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.draft.RemoveStep(r.PathValue("id")); err != nil {
		writeError(w, draftStatus(err), err.Error())
		return
	}
	writeJSON(w, s.draftPayload())
}

func (s *Server) handleStepImageAttach(w http.ResponseWriter, r *http.Request) {
	// Cap the whole request a little above the attachment limit so the
	// multipart framing fits; the draft enforces the exact byte limit.
	r.Body = http.MaxBytesReader(w, r.Body, task.MaxImageBytes+1<<20)
	if err := r.ParseMultipartForm(task.MaxImageBytes + 1<<20); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, task.ErrImageTooLarge.Error())
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing image file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable image file")
		return
	}

	if err := s.draft.AttachImage(r.PathValue("id"), data); err != nil {
		writeError(w, draftStatus(err), err.Error())
		return
	}
	writeJSON(w, s.draftPayload())
}

func (s *Server) handleStepImageRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.draft.RemoveImage(r.PathValue("id")); err != nil {
		writeError(w, draftStatus(err), err.Error())
		return
	}
	writeJSON(w, s.draftPayload())
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"templates": task.Templates})
}

func (s *Server) handleDraftLoad(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TemplateID string   `json:"template_id"`
		Title      string   `json:"title"`
		Steps      []string `json:"steps"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loaded := types.Task{Title: body.Title, Steps: body.Steps}
	if body.TemplateID != "" {
		tmpl, ok := task.Template(body.TemplateID)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown template")
			return
		}
		loaded = tmpl
	}

	s.draft.Load(loaded)
	writeJSON(w, s.draftPayload())
}

func (s *Server) handleDraftSetup(w http.ResponseWriter, r *http.Request) {
	if err := s.draft.Validate(); err != nil {
		s.metrics.ValidationErrors.Add(1)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	title, steps := s.draft.Snapshot()
	message, err := s.remote.SetupTask(r.Context(), title, steps)
	if err != nil {
		s.metrics.TransportErrors.Add(1)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if message == "" {
		message = "task submitted"
	}
	writeJSON(w, map[string]any{"message": message})
}

func draftStatus(err error) int {
	switch {
	case errors.Is(err, task.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, task.ErrLastStep):
		return http.StatusConflict
	case errors.Is(err, task.ErrUnknownStep):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// --- tasks ---

func (s *Server) handleTasksList(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.remote.ListTasks(r.Context())
	if err != nil {
		s.metrics.TransportErrors.Add(1)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if tasks == nil {
		tasks = []types.Task{}
	}
	writeJSON(w, map[string]any{"tasks": tasks})
}

func (s *Server) handleTasksSave(w http.ResponseWriter, r *http.Request) {
	if err := s.draft.Validate(); err != nil {
		s.metrics.ValidationErrors.Add(1)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	title, steps := s.draft.Snapshot()
	tasks, err := s.remote.SaveTask(r.Context(), title, steps)
	if err != nil {
		s.metrics.TransportErrors.Add(1)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if tasks == nil {
		tasks = []types.Task{}
	}
	writeJSON(w, map[string]any{"tasks": tasks})
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.remote.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		s.metrics.TransportErrors.Add(1)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, map[string]any{"message": "task deleted"})
}

// --- capture loops ---

func (s *Server) handleTrackingStart(w http.ResponseWriter, r *http.Request) {
	s.startLoop(w, s.tracking, "tracking started")
}

func (s *Server) handleTrackingStop(w http.ResponseWriter, r *http.Request) {
	s.tracking.Stop()
	writeJSON(w, map[string]any{"message": "tracking stopped"})
}

func (s *Server) handleDetectionStart(w http.ResponseWriter, r *http.Request) {
	s.startLoop(w, s.detection, "detection started")
}

func (s *Server) handleDetectionStop(w http.ResponseWriter, r *http.Request) {
	s.detection.Stop()
	s.clearDetections()
	writeJSON(w, map[string]any{"message": "detection stopped"})
}

func (s *Server) startLoop(w http.ResponseWriter, loop *track.Loop, message string) {
	if !s.camera.Active() {
		writeError(w, http.StatusConflict, "webcam is not active")
		return
	}
	if err := loop.Start(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, map[string]any{"message": message, "interval_ms": loop.Interval().Milliseconds()})
}

func (s *Server) handleCaptureInterval(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IntervalMs int64 `json:"interval_ms"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Apply to both loops or neither: refuse while either one is running.
	if s.tracking.Running() || s.detection.Running() {
		writeError(w, http.StatusConflict, track.ErrRunning.Error())
		return
	}

	interval := time.Duration(body.IntervalMs) * time.Millisecond
	if err := s.tracking.SetInterval(interval); err != nil {
		writeError(w, intervalStatus(err), err.Error())
		return
	}
	if err := s.detection.SetInterval(interval); err != nil {
		writeError(w, intervalStatus(err), err.Error())
		return
	}
	writeJSON(w, map[string]any{"interval_ms": interval.Milliseconds()})
}

func intervalStatus(err error) int {
	if errors.Is(err, track.ErrRunning) {
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

// --- detections and responses ---

func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	s.detections.mu.Lock()
	objects := make([]types.DetectedObject, len(s.detections.objects))
	copy(objects, s.detections.objects)
	perf := s.detections.perf
	updated := s.detections.updated
	s.detections.mu.Unlock()

	payload := map[string]any{
		"objects":             objects,
		"performance_metrics": perf,
	}
	if !updated.IsZero() {
		payload["updated_at"] = float64(updated.Unix())
	}
	writeJSON(w, payload)
}

func (s *Server) handleResponses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"responses": s.responses.Items()})
}

func (s *Server) handleResponsesClear(w http.ResponseWriter, r *http.Request) {
	s.responses.Clear()
	writeJSON(w, map[string]any{"message": "responses cleared"})
}

// --- session ---

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.remote.Reset(r.Context()); err != nil {
		s.metrics.TransportErrors.Add(1)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, map[string]any{"message": "session reset"})
}

// --- helpers ---

func decodeJSON(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSONWithStatus(w, map[string]any{"error": message}, status)
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":"%s"}`, err.Error())
	}
}
