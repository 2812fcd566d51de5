package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jonathan/cv-sync/internal/types"
)

// RenderPDF asks the server to render the document and returns the PDF URL.
//
// The request prefers a Server-Sent Events stream of "progress", "complete" and
// "error" events; a plain JSON {pdfUrl} response is accepted as well. A stream
// that ends before "complete" is a network error.
func (c *Client) RenderPDF(ctx context.Context, in types.RenderRequest, onProgress func(int)) (string, error) {
	const op = "render pdf"

	data, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("%s: failed to encode request: %w", op, err)
	}
	req, err := c.newRequest(ctx, op, http.MethodPost, "/api/v1/cv/pdf", bytes.NewReader(data), true)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream, application/json")

	resp, err := c.send(op, req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	u := req.URL.String()
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		var out types.RenderResponse
		if err := decodeJSON(op, u, resp, &out); err != nil {
			return "", err
		}
		if out.PDFURL == "" {
			return "", &MalformedResponseError{Op: op, URL: u, Message: "missing pdfUrl"}
		}
		return out.PDFURL, nil
	}
	return readRenderStream(op, u, resp.Body, onProgress)
}

type sseEvent struct {
	name string
	data []byte
}

func readRenderStream(op, u string, body io.Reader, onProgress func(int)) (string, error) {
	var result string
	err := scanEvents(body, func(ev sseEvent) (bool, error) {
		switch ev.name {
		case "progress":
			var p types.RenderProgress
			if err := json.Unmarshal(ev.data, &p); err != nil {
				return false, &MalformedResponseError{Op: op, URL: u, Message: "invalid progress event", Cause: err}
			}
			if onProgress != nil {
				onProgress(p.Progress)
			}
			return false, nil
		case "complete":
			var out types.RenderResponse
			if err := json.Unmarshal(ev.data, &out); err != nil {
				return false, &MalformedResponseError{Op: op, URL: u, Message: "invalid complete event", Cause: err}
			}
			if out.PDFURL == "" {
				return false, &MalformedResponseError{Op: op, URL: u, Message: "missing pdfUrl"}
			}
			result = out.PDFURL
			return true, nil
		case "error":
			var er struct {
				Error  string `json:"error"`
				Status int    `json:"status"`
			}
			if err := json.Unmarshal(ev.data, &er); err != nil {
				return false, &MalformedResponseError{Op: op, URL: u, Message: "invalid error event", Cause: err}
			}
			status := er.Status
			if status == 0 {
				status = http.StatusInternalServerError
			}
			return false, &HTTPError{Op: op, URL: u, StatusCode: status, Message: er.Error}
		default:
			return false, nil
		}
	})
	if err != nil {
		var he *HTTPError
		var me *MalformedResponseError
		if errors.As(err, &he) || errors.As(err, &me) {
			return "", err
		}
		return "", &NetworkError{Op: op, URL: u, Cause: err}
	}
	if result == "" {
		return "", &NetworkError{Op: op, URL: u, Cause: io.ErrUnexpectedEOF}
	}
	return result, nil
}

// scanEvents calls fn for every event in an SSE stream until fn reports done, fn fails or the stream ends.
func scanEvents(r io.Reader, fn func(sseEvent) (bool, error)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	var ev sseEvent
	var data [][]byte
	dispatch := func() (bool, error) {
		if ev.name == "" && len(data) == 0 {
			return false, nil
		}
		if ev.name == "" {
			ev.name = "message"
		}
		ev.data = bytes.Join(data, []byte("\n"))
		done, err := fn(ev)
		ev, data = sseEvent{}, nil
		return done, err
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if done, err := dispatch(); done || err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "event:"):
			ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, []byte(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	_, err := dispatch()
	return err
}
