package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"sync"

	"github.com/jonathan/cv-sync/internal/types"
)

// MaxImageBytes is the largest profile image the client will send.
const MaxImageBytes = 5 << 20

// UploadProfileImage sends the image as multipart field "image" and returns its public URL.
// onProgress, when set, receives non-decreasing fractions in [0,1] and ends with exactly 1 on success.
func (c *Client) UploadProfileImage(ctx context.Context, name string, r io.Reader, onProgress func(float64)) (string, error) {
	const op = "upload profile image"

	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("%s: failed to read image: %w", op, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%s: image is empty", op)
	}
	if len(data) > MaxImageBytes {
		return "", fmt.Errorf("%s: image exceeds %d bytes", op, MaxImageBytes)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filepath.Base(name)))
	header.Set("Content-Type", http.DetectContentType(data))
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("%s: failed to build form: %w", op, err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("%s: failed to build form: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("%s: failed to build form: %w", op, err)
	}

	progress := &progressReporter{fn: onProgress}
	total := int64(body.Len())
	counter := &countingReader{r: &body, total: total, report: progress.report}

	req, err := c.newRequest(ctx, op, http.MethodPost, "/api/v1/cv/profile-image", counter, true)
	if err != nil {
		return "", err
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.send(op, req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var out types.ImageUploadResponse
	if err := decodeJSON(op, req.URL.String(), resp, &out); err != nil {
		return "", err
	}
	if out.ImageURL == "" {
		return "", &MalformedResponseError{Op: op, URL: req.URL.String(), Message: "missing imageUrl"}
	}
	progress.report(1)
	return out.ImageURL, nil
}

// countingReader reports the fraction of total read so far.
type countingReader struct {
	r      io.Reader
	n      int64
	total  int64
	report func(float64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if n > 0 && c.total > 0 {
		// 1 is reserved for the acknowledged upload.
		frac := float64(c.n) / float64(c.total)
		if frac >= 1 {
			frac = 0.99
		}
		c.report(frac)
	}
	return n, err
}

// progressReporter drops values that would move progress backwards.
type progressReporter struct {
	mu   sync.Mutex
	fn   func(float64)
	last float64
}

func (p *progressReporter) report(v float64) {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	if v <= p.last {
		p.mu.Unlock()
		return
	}
	p.last = v
	p.mu.Unlock()
	p.fn(v)
}
