package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// httpAPI is the shared request plumbing for the upstream service clients: one
// synchronous request per call, bounded by a timeout, no retries. Status-code
// policy belongs to each client, not here.
type httpAPI struct {
	base    string
	service string
	client  *http.Client
}

func newHTTPAPI(base, service string, timeout time.Duration) httpAPI {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return httpAPI{
		base:    strings.TrimRight(base, "/"),
		service: service,
		client:  &http.Client{Timeout: timeout},
	}
}

func (a httpAPI) get(ctx context.Context, path string, query url.Values, header http.Header) (int, []byte, error) {
	u := a.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: build request: %w", a.service, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return a.do(req)
}

func (a httpAPI) postJSON(ctx context.Context, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: encode payload: %w", a.service, err)
	}
	return a.postRaw(ctx, path, body)
}

func (a httpAPI) postRaw(ctx context.Context, path string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("%s: build request: %w", a.service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req)
}

func (a httpAPI) do(req *http.Request) (int, []byte, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", a.service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%s: read response: %w", a.service, err)
	}
	return resp.StatusCode, body, nil
}
