package source

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tablekit/tablekit/internal/errors"
)

// HTTPSource fetches records from a JSON HTTP API. Responses are either a
// bare array of objects or an envelope {"data": [...], "total": n}. HTTP
// status codes map onto the engine error taxonomy so the adapter retry
// policy can classify failures without knowing the wire protocol.
type HTTPSource struct {
	name     string
	baseURL  string
	client   *http.Client
	caps     Capabilities
	headers  map[string]string
}

// HTTPOption customizes an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPSource) { s.client = client }
}

// WithHeader attaches a static request header, e.g. an API key.
func WithHeader(key, value string) HTTPOption {
	return func(s *HTTPSource) { s.headers[key] = value }
}

// WithCapabilities restricts the write surface, e.g. for read-only feeds.
func WithCapabilities(caps Capabilities) HTTPOption {
	return func(s *HTTPSource) { s.caps = caps }
}

// NewHTTPSource creates a source rooted at baseURL; entity requests go to
// baseURL/<entity> and baseURL/<entity>/<id>.
func NewHTTPSource(name, baseURL string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		caps:    Capabilities{Create: true, Update: true, Delete: true, Search: true},
		headers: make(map[string]string),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name identifies the source.
func (s *HTTPSource) Name() string { return s.name }

// Capabilities reports the configured capability set.
func (s *HTTPSource) Capabilities() Capabilities { return s.caps }

// Fetch performs one HTTP round trip for the request.
func (s *HTTPSource) Fetch(ctx context.Context, req Request) (*Response, error) {
	method, endpoint, body, err := s.plan(req)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, errors.NewInternalError(errors.ErrCodeInternal, "encoding request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternal, "building request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range s.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(req, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, classifyStatus(req, resp.StatusCode)
	}

	if req.Op == OpDelete {
		io.Copy(io.Discard, resp.Body)
		return &Response{}, nil
	}

	return decodeBody(resp.Body)
}

// plan maps an operation onto method, URL and body.
func (s *HTTPSource) plan(req Request) (method, endpoint string, body map[string]interface{}, err error) {
	base := s.baseURL + "/" + url.PathEscape(req.Entity)

	switch req.Op {
	case OpList, OpSearch:
		values := url.Values{}
		if req.Query.Page > 0 {
			values.Set("page", strconv.Itoa(req.Query.Page))
		}
		if req.Query.Limit > 0 {
			values.Set("limit", strconv.Itoa(req.Query.Limit))
		}
		if req.Query.Search != "" {
			values.Set("search", req.Query.Search)
		}
		for _, sk := range req.Query.Sort {
			values.Add("sort", sk.Field+":"+string(sk.Direction))
		}
		for _, f := range req.Query.Filters {
			values.Add("filter", fmt.Sprintf("%s:%s:%v", f.Field, f.Operator, f.Value))
		}
		endpoint = base
		if encoded := values.Encode(); encoded != "" {
			endpoint += "?" + encoded
		}
		return http.MethodGet, endpoint, nil, nil

	case OpGet:
		return http.MethodGet, base + "/" + url.PathEscape(req.ID), nil, nil

	case OpCreate:
		return http.MethodPost, base, req.Record, nil

	case OpUpdate:
		return http.MethodPut, base + "/" + url.PathEscape(req.ID), req.Record, nil

	case OpDelete:
		return http.MethodDelete, base + "/" + url.PathEscape(req.ID), nil, nil

	default:
		return "", "", nil, errors.ErrUnsupportedOperation(req.Entity, string(req.Op))
	}
}

// decodeBody accepts {"data": [...], "total": n, ...} envelopes, bare
// arrays, and single objects.
func decodeBody(r io.Reader) (*Response, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewTransientError(errors.ErrCodeNetwork, "reading response body", err)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return &Response{}, nil
	}

	switch trimmed[0] {
	case '[':
		var rows []map[string]interface{}
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, errors.NewInternalError(errors.ErrCodeMalformedRecord, "decoding response array", err)
		}
		return &Response{Rows: rows, Total: len(rows)}, nil

	case '{':
		var envelope struct {
			Data  []map[string]interface{} `json:"data"`
			Total *int                     `json:"total"`
			Meta  map[string]interface{}   `json:"metadata"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err == nil && envelope.Data != nil {
			total := len(envelope.Data)
			if envelope.Total != nil {
				total = *envelope.Total
			}
			return &Response{Rows: envelope.Data, Total: total, Meta: envelope.Meta}, nil
		}

		var row map[string]interface{}
		if err := json.Unmarshal(trimmed, &row); err != nil {
			return nil, errors.NewInternalError(errors.ErrCodeMalformedRecord, "decoding response object", err)
		}
		return &Response{Rows: []map[string]interface{}{row}, Total: 1}, nil

	default:
		return nil, errors.NewInternalError(errors.ErrCodeMalformedRecord, "unexpected response payload", nil)
	}
}

// classifyTransportError maps transport failures; timeouts and connection
// errors are transient.
func classifyTransportError(req Request, err error) error {
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.NewTransientError(errors.ErrCodeTimeout, "request timed out", err).
			WithEntity(req.Entity).WithOperation(string(req.Op))
	}

	return errors.NewTransientError(errors.ErrCodeNetwork, "request failed", err).
		WithEntity(req.Entity).WithOperation(string(req.Op))
}

// classifyStatus maps HTTP status codes onto the error taxonomy.
func classifyStatus(req Request, status int) error {
	var err *errors.GridError

	switch {
	case status == http.StatusTooManyRequests:
		err = errors.NewRateLimitError(errors.ErrCodeRateLimited,
			fmt.Sprintf("rate limited by remote (%d)", status))
	case status == http.StatusConflict || status == http.StatusPreconditionFailed:
		err = errors.NewConflictError(errors.ErrCodeConflict,
			fmt.Sprintf("remote state conflict (%d)", status))
	case status == http.StatusNotFound:
		err = errors.ErrRecordNotFound(req.Entity, req.ID)
	case status == http.StatusRequestTimeout || status >= 500:
		err = errors.NewTransientError(errors.ErrCodeNetwork,
			fmt.Sprintf("remote failure (%d)", status), nil)
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		err = errors.NewValidationError(errors.ErrCodeValidation,
			fmt.Sprintf("remote rejected request (%d)", status))
	default:
		err = errors.NewInternalError(errors.ErrCodeInternal,
			fmt.Sprintf("unexpected status (%d)", status), nil)
	}

	return err.WithEntity(req.Entity).WithOperation(string(req.Op))
}
