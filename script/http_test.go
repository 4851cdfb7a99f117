package script

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPRequestDo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	req := &HTTPRequest{URL: server.URL}
	resp := req.Do(context.Background())
	if resp.Error != "" {
		t.Fatal(resp.Error)
	}
	if resp.StatusCode != 200 || resp.Body != `{"ok":true}` {
		t.Fatalf("%#v", resp)
	}
	if resp.ContentType != "application/json" {
		t.Fatal(resp.ContentType)
	}
}

func TestHTTPRequestTransportError(t *testing.T) {
	req := &HTTPRequest{URL: "http://127.0.0.1:1/nope", ResponseTimeoutMS: 100}
	resp := req.Do(context.Background())
	if resp.Error == "" {
		t.Fatal("expected an error in the response")
	}
}

func TestHTTPRequestTestResponse(t *testing.T) {
	canned := &HTTPResponse{StatusCode: 418, Body: "short and stout"}
	req := &HTTPRequest{URL: "http://example.com", TestResponse: canned}
	if resp := req.Do(context.Background()); resp != canned {
		t.Fatalf("%#v", resp)
	}
}

func TestAsHTTPRequest(t *testing.T) {
	req, err := asHTTPRequest(map[string]interface{}{
		"method":  "POST",
		"url":     "http://example.com",
		"body":    "hi",
		"timeout": float64(500),
	})
	if err != nil {
		t.Fatal(err)
	}
	if req.Method != "POST" || req.ResponseTimeoutMS != 500 {
		t.Fatalf("%#v", req)
	}
}
