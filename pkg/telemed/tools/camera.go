package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Camera captures single frames from an ESP32-CAM over its HTTP /capture
// endpoint.
type Camera struct {
	client *http.Client

	// baseURL is http://<ip>, overridable for tests.
	baseURL string
	retries int
}

// NewCamera creates a Camera for the device at ip. An empty ip means the
// camera is unconfigured; callers should not construct one in that case.
func NewCamera(ip string, timeout time.Duration) *Camera {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Camera{
		client:  &http.Client{Timeout: timeout},
		baseURL: "http://" + ip,
		retries: 3,
	}
}

// Capture fetches one JPEG frame into outFile, retrying on transient errors.
// ESP32 firmware often omits the Content-Type header, so any substantial
// response body is accepted as an image.
func (c *Camera) Capture(ctx context.Context, outFile string) error {
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
		data, err := c.fetch(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		if err := os.MkdirAll(filepath.Dir(outFile), 0o755); err != nil {
			return fmt.Errorf("camera: creating output dir: %w", err)
		}
		if err := os.WriteFile(outFile, data, 0o644); err != nil {
			return fmt.Errorf("camera: writing frame: %w", err)
		}
		return nil
	}
	return fmt.Errorf("camera: capture failed after %d attempts: %w", c.retries, lastErr)
}

func (c *Camera) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/capture", nil)
	if err != nil {
		return nil, fmt.Errorf("camera: creating request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("camera: connection failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("camera: reading frame: %w", err)
	}
	ct := resp.Header.Get("Content-Type")
	if !isImage(ct) && len(data) < 1000 {
		return nil, fmt.Errorf("camera: response does not look like an image (content-type %q, %d bytes)", ct, len(data))
	}
	return data, nil
}

func isImage(contentType string) bool {
	return len(contentType) >= 5 && contentType[:5] == "image"
}
