package script

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// HTTPRequest is the payload for a scripted {"task": {"http": ...}}.
type HTTPRequest struct {
	Method            string      `json:"method,omitempty"`
	URL               string      `json:"url"`
	Body              string      `json:"body,omitempty"`
	Headers           http.Header `json:"headers,omitempty"`
	ResponseTimeoutMS int         `json:"timeout,omitempty"`

	Debug bool `json:"debug,omitempty"`

	// TestResponse, if there, will be returned instead of attempting
	// a real HTTP request.
	TestResponse *HTTPResponse `json:"testResponse,omitempty"`
}

// HTTPResponse carries the outcome of an HTTPRequest.  A transport
// failure lands in Error: it's data for the reducer, not a Go error.
type HTTPResponse struct {
	StatusCode  int         `json:"statusCode,omitempty"`
	Status      string      `json:"status,omitempty"`
	Error       string      `json:"error,omitempty"`
	Headers     http.Header `json:"headers,omitempty"`
	Body        string      `json:"body,omitempty"`
	ContentType string      `json:"contentType,omitempty"`
}

func asHTTPRequest(x interface{}) (*HTTPRequest, error) {
	js, err := json.Marshal(&x)
	if err != nil {
		return nil, err
	}
	var req HTTPRequest
	if err := json.Unmarshal(js, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *HTTPRequest) logf(format string, args ...interface{}) {
	if r.Debug {
		log.Printf(format, args...)
	}
}

// Do makes the request synchronously.
func (r *HTTPRequest) Do(ctx context.Context) *HTTPResponse {
	if r.TestResponse != nil {
		return r.TestResponse
	}

	method := r.Method
	if method == "" {
		method = "GET"
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), r.URL, bytes.NewBufferString(r.Body))
	if err != nil {
		return &HTTPResponse{Error: err.Error()}
	}
	for k, vs := range r.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return &HTTPResponse{Error: err.Error()}
	}

	client := &http.Client{Jar: jar}
	if 0 < r.ResponseTimeoutMS {
		client.Timeout = time.Duration(r.ResponseTimeoutMS) * time.Millisecond
	}

	r.logf("HTTPRequest %s %s", method, r.URL)

	resp, err := client.Do(req)
	if err != nil {
		return &HTTPResponse{Error: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &HTTPResponse{Error: err.Error()}
	}

	r.logf("HTTPResponse %s %d", r.URL, resp.StatusCode)

	return &HTTPResponse{
		StatusCode:  resp.StatusCode,
		Status:      resp.Status,
		Headers:     resp.Header,
		Body:        string(body),
		ContentType: resp.Header.Get("Content-Type"),
	}
}
