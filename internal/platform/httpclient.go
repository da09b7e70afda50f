package platform

import (
	"bytes"
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"time"

	"github.com/zerx-lab/penbridge/internal/errors"
	"github.com/zerx-lab/penbridge/internal/session"
)

const (
	// userAgent is sent on every platform API request.
	userAgent = "penbridge/1.0"

	// maxResponseBytes caps how much of a platform response is read.
	maxResponseBytes = 4 * 1024 * 1024

	// snippetLen bounds how much platform body text ends up in error messages.
	snippetLen = 200
)

// NewHTTPClient returns the http client used for platform API calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// DoJSON performs one JSON API request with the platform's cookies attached
// and decodes the response into respBody (when non-nil).
//
// Network failures map to TRANSPORT or TIMEOUT, 401/403 to AUTH_EXPIRED,
// and 429 to RATE_LIMITED. Any other non-2xx status surfaces as
// PLATFORM_ERROR carrying a body snippet.
func DoJSON(ctx context.Context, hc *http.Client, id ID, method, url string, cred *session.Credential, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return errors.NewInternal(err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return errors.NewInternal(err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return do(hc, req, id, cred, respBody)
}

// DoUpload performs a multipart file upload with the platform's cookies
// attached, using fieldName as the form file field.
func DoUpload(ctx context.Context, hc *http.Client, id ID, url string, cred *session.Credential, fieldName, filename string, data []byte, respBody any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(fieldName, filename)
	if err != nil {
		return errors.NewInternal(err)
	}
	if _, err := part.Write(data); err != nil {
		return errors.NewInternal(err)
	}
	if err := writer.Close(); err != nil {
		return errors.NewInternal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return errors.NewInternal(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return do(hc, req, id, cred, respBody)
}

// do sends a prepared request and applies the shared status and decode handling.
func do(hc *http.Client, req *http.Request, id ID, cred *session.Credential, respBody any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if cred != nil {
		req.Header.Set("Cookie", cred.CookieHeader())
	}

	resp, err := hc.Do(req)
	if err != nil {
		return classifyTransportError(id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.NewTransport(err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.NewAuthExpired(string(id))
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.NewRateLimited(string(id))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return errors.NewPlatformError(string(id),
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, snippet(data)))
	}

	if respBody != nil {
		if err := json.Unmarshal(data, respBody); err != nil {
			return errors.NewPlatformError(string(id), fmt.Sprintf("malformed response: %v", err))
		}
	}
	return nil
}

// classifyTransportError separates timeouts from other network failures.
func classifyTransportError(id ID, err error) *errors.BridgeError {
	var netErr net.Error
	if goerrors.As(err, &netErr) && netErr.Timeout() {
		return errors.NewTimeout(string(id) + " request")
	}
	if goerrors.Is(err, context.DeadlineExceeded) {
		return errors.NewTimeout(string(id) + " request")
	}
	return errors.NewTransport(err)
}

// snippet trims response bodies for error messages.
func snippet(data []byte) string {
	s := string(bytes.TrimSpace(data))
	if len(s) > snippetLen {
		return s[:snippetLen] + "..."
	}
	if s == "" {
		return "(empty body)"
	}
	return s
}
