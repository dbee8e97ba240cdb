package node

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/trockboppro/v4panel/internal/panel/model"
)

func nodeFor(t *testing.T, srv *httptest.Server) model.NodeRef {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return model.NodeRef{ID: "n1", Address: u.Hostname(), Port: port, APIKey: "secret"}
}

func TestCallSendsBasicAuth(t *testing.T) {
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(0, 0)
	if _, err := c.Call(context.Background(), nodeFor(t, srv), http.MethodGet, "/instances/x/states/get", nil); err != nil {
		t.Fatalf("call: %v", err)
	}
	if gotUser != BasicAuthUser || gotPass != "secret" {
		t.Fatalf("unexpected credentials %q/%q", gotUser, gotPass)
	}
}

func TestCallRetriesOnceOn5xx(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"containerId":"abc"}`))
	}))
	defer srv.Close()

	c := NewClient(0, 0)
	resp, err := c.Call(context.Background(), nodeFor(t, srv), http.MethodPost, "/instances/create", nil)
	if err != nil {
		t.Fatalf("call should succeed on retry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", calls)
	}
	id, err := DecodeContainerID(resp)
	if err != nil || id != "abc" {
		t.Fatalf("decode container id: %q %v", id, err)
	}
}

func TestCallStopsAfterSecondFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(0, 0)
	_, err := c.Call(context.Background(), nodeFor(t, srv), http.MethodDelete, "/instances/abc", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", calls)
	}
	rce, ok := err.(*model.RemoteCallError)
	if !ok || rce.Status != http.StatusBadGateway {
		t.Fatalf("expected RemoteCallError with upstream status, got %#v", err)
	}
}

func TestCallDoesNotRetry4xx(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(0, 0)
	_, err := c.Call(context.Background(), nodeFor(t, srv), http.MethodDelete, "/instances/abc", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("4xx must not be retried, got %d attempts", calls)
	}
}

func TestCallRejectsIncompleteNode(t *testing.T) {
	c := NewClient(0, 0)
	_, err := c.Call(context.Background(), model.NodeRef{Address: "10.0.0.1"}, http.MethodGet, "/x", nil)
	if _, ok := err.(*model.NodeConfigurationError); !ok {
		t.Fatalf("expected NodeConfigurationError, got %#v", err)
	}
}

func TestDecodeContainerIDPrefersNewID(t *testing.T) {
	id, err := DecodeContainerID(&Response{Body: []byte(`{"containerId":"old","newContainerId":"new"}`)})
	if err != nil || id != "new" {
		t.Fatalf("got %q, %v", id, err)
	}
	if _, err := DecodeContainerID(&Response{Body: []byte(`{}`)}); err == nil {
		t.Fatal("expected error for empty response")
	}
}
