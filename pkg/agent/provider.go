package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// maxErrorBody caps how much of a failed response is read for diagnostics.
const maxErrorBody = 64 * 1024

// Provider shapes requests and interprets responses for one chat vendor.
type Provider interface {
	// Info returns the vendor's name, description and version
	Info() Info

	// DefaultConfig returns the vendor defaults for base URL, key and model
	DefaultConfig() Config

	// BuildRequest creates the HTTP request for one chat round
	BuildRequest(ctx context.Context, cfg Config, body ChatRequest) (*http.Request, error)

	// CheckResponseStatus returns an error for a failed response
	CheckResponseStatus(resp *http.Response) error

	// ListModels returns the model ids offered by the endpoint
	ListModels(ctx context.Context, cfg Config, httpClient *http.Client) ([]string, error)
}

// ChatURL joins the base URL and a chat path.
func ChatURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func newJSONRequest(ctx context.Context, url string, cfg Config, body ChatRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	return req, nil
}

// statusError reads a failed response into an HTTPStatusError.
func statusError(resp *http.Response) *HTTPStatusError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPStatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Message:    ErrorMessage(data),
		Body:       string(data),
	}
}

// ErrorMessage extracts the upstream error text from a JSON error payload.
// Both {"error":{"message":...}} and {"error":"..."} shapes are accepted.
func ErrorMessage(payload []byte) string {
	errField := gjson.GetBytes(payload, "error")
	if !errField.Exists() {
		return ""
	}
	if errField.Type == gjson.String {
		return errField.String()
	}
	return errField.Get("message").String()
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return statusError(resp)
}
