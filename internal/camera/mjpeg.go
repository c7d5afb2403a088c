package camera

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okume/camassist/internal/logger"
	"github.com/okume/camassist/pkg/types"
)

// MJPEGSource reads frames from an MJPEG-over-HTTP camera endpoint
// (ustreamer/mjpg-streamer style). Each multipart part is one JPEG still.
type MJPEGSource struct {
	url    string
	client *http.Client
}

// NewMJPEGSource creates a source for the given stream URL. Width and height
// are passed to the device as resolution hints; zero values are omitted.
func NewMJPEGSource(rawURL string, idealWidth, idealHeight int) (*MJPEGSource, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse camera url: %w", err)
	}
	q := u.Query()
	if idealWidth > 0 {
		q.Set("width", strconv.Itoa(idealWidth))
	}
	if idealHeight > 0 {
		q.Set("height", strconv.Itoa(idealHeight))
	}
	u.RawQuery = q.Encode()

	return &MJPEGSource{
		url: u.String(),
		// No overall timeout: the stream is long lived. Dial/header timeouts
		// still apply through the transport defaults.
		client: &http.Client{},
	}, nil
}

// Frames connects to the device and starts delivering frames.
func (s *MJPEGSource) Frames(ctx context.Context) (<-chan types.Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: device returned %d", ErrPermissionDenied, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: device returned %d", ErrDeviceUnavailable, resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" || params["boundary"] == "" {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: not an MJPEG stream (content-type %q)", ErrDeviceUnavailable, resp.Header.Get("Content-Type"))
	}

	frames := make(chan types.Frame, 1)
	go s.readLoop(ctx, resp.Body, params["boundary"], frames)
	return frames, nil
}

func (s *MJPEGSource) readLoop(ctx context.Context, body io.ReadCloser, boundary string, frames chan types.Frame) {
	defer close(frames)
	defer body.Close()

	reader := multipart.NewReader(body, boundary)
	var number uint64

	for {
		part, err := reader.NextPart()
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("Camera", "MJPEG stream ended: %v", err)
			}
			return
		}

		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("Camera", "MJPEG frame read failed: %v", err)
			}
			return
		}

		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			// Corrupt part; keep the stream alive.
			logger.Debug("Camera", "Skipping undecodable frame: %v", err)
			continue
		}

		number++
		frame := types.Frame{
			Data:      data,
			Width:     cfg.Width,
			Height:    cfg.Height,
			Number:    number,
			Timestamp: time.Now(),
		}

		select {
		case frames <- frame:
		case <-ctx.Done():
			return
		default:
			// Consumer is behind; drop the oldest pending frame.
			select {
			case <-frames:
			default:
			}
			select {
			case frames <- frame:
			default:
			}
		}
	}
}
