package reconcile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/trockboppro/v4panel/internal/panel/model"
	"github.com/trockboppro/v4panel/internal/panel/node"
	"github.com/trockboppro/v4panel/internal/panel/store"
)

func nodeFor(t *testing.T, srv *httptest.Server) model.NodeRef {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	port, _ := strconv.Atoi(u.Port())
	return model.NodeRef{ID: "n1", Address: u.Hostname(), Port: port, APIKey: "k"}
}

func queueLen(t *testing.T, s store.Store) int {
	t.Helper()
	data, err := s.Get(context.Background(), model.PendingDeletesKey)
	if err == store.ErrKeyNotFound {
		return 0
	}
	if err != nil {
		t.Fatalf("get queue: %v", err)
	}
	var queue []model.PendingDelete
	if err := json.Unmarshal(data, &queue); err != nil {
		t.Fatalf("decode queue: %v", err)
	}
	return len(queue)
}

func TestRunOnceConfirmsDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	s := store.NewMemStore()
	if err := Enqueue(context.Background(), s, model.PendingDelete{ContainerID: "abc", Node: nodeFor(t, srv)}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	c := NewConsumer(s, node.NewClient(0, 0), 0, 0)
	if err := c.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if n := queueLen(t, s); n != 0 {
		t.Fatalf("queue should be empty, got %d", n)
	}
}

func TestRunOnceTreats404AsConfirmed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := store.NewMemStore()
	if err := Enqueue(context.Background(), s, model.PendingDelete{ContainerID: "abc", Node: nodeFor(t, srv)}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	c := NewConsumer(s, node.NewClient(0, 0), 0, 0)
	if err := c.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if n := queueLen(t, s); n != 0 {
		t.Fatalf("daemon 404 means gone, queue should be empty, got %d", n)
	}
}

func TestRunOnceKeepsFailingEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := store.NewMemStore()
	if err := Enqueue(context.Background(), s, model.PendingDelete{ContainerID: "abc", Node: nodeFor(t, srv)}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	c := NewConsumer(s, node.NewClient(0, 0), 0, 3)
	if err := c.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if n := queueLen(t, s); n != 1 {
		t.Fatalf("entry should survive a failed attempt, got %d", n)
	}

	// attempt budget exhausts after maxAttempts runs
	if err := c.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if err := c.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if n := queueLen(t, s); n != 0 {
		t.Fatalf("entry should be abandoned after budget, got %d", n)
	}
}

func TestEnqueueDeduplicates(t *testing.T) {
	s := store.NewMemStore()
	pd := model.PendingDelete{ContainerID: "abc", Node: model.NodeRef{ID: "n1", Address: "10.0.0.1", Port: 1, APIKey: "k"}}
	if err := Enqueue(context.Background(), s, pd); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := Enqueue(context.Background(), s, pd); err != nil {
		t.Fatalf("enqueue twice: %v", err)
	}
	if n := queueLen(t, s); n != 1 {
		t.Fatalf("duplicate containers must not be re-queued, got %d", n)
	}
}
