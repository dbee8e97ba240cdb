package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/trockboppro/v4panel/internal/middleware"
	"github.com/trockboppro/v4panel/internal/panel/model"
	"github.com/trockboppro/v4panel/internal/panel/node"
	"github.com/trockboppro/v4panel/internal/panel/service"
	"github.com/trockboppro/v4panel/internal/panel/store"
)

const adminToken = "root-token"

func testSetup(t *testing.T) (*gin.Engine, *service.Service, *store.MemStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := store.NewMemStore()
	svc := service.New(s, node.NewClient(0, 0))
	router := gin.New()
	NewApi(svc, router, middleware.Authentication(svc, adminToken))
	return router, svc, s
}

func request(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func fakeDaemonRef(t *testing.T) model.NodeRef {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"containerId": "cont01", "newContainerId": "cont01", "state": "RUNNING"})
	}))
	t.Cleanup(srv.Close)
	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())
	return model.NodeRef{ID: "n1", Address: u.Hostname(), Port: port, APIKey: "k"}
}

func TestRoutesRequireAuth(t *testing.T) {
	router, _, _ := testSetup(t)
	if w := request(t, router, http.MethodGet, "/api/instances", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	// health stays open
	if w := request(t, router, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("healthz should be public, got %d", w.Code)
	}
}

func TestDeployAndGetOverHTTP(t *testing.T) {
	router, svc, _ := testSetup(t)
	ref := fakeDaemonRef(t)

	caller := &model.User{ID: "root", Admin: true}
	n, err := svc.CreateNode(context.Background(), caller, service.CreateNodeRequest{
		Name: "node-1", Address: ref.Address, Port: ref.Port, APIKey: "k",
	})
	if err != nil {
		t.Fatalf("create node: %v", err)
	}

	w := request(t, router, http.MethodPost, "/api/instances", adminToken, map[string]any{
		"name": "craft", "image": "game:1.0", "memory": 1024, "cpu": 2,
		"nodeId": n.ID, "userId": "user-1",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("deploy: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var rec model.Instance
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.ContainerID != "cont01" {
		t.Fatalf("unexpected container id %q", rec.ContainerID)
	}

	if w := request(t, router, http.MethodGet, "/api/instances/cont01", adminToken, nil); w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}
}

func TestSuspendForbiddenForNonAdmin(t *testing.T) {
	router, svc, _ := testSetup(t)
	ref := fakeDaemonRef(t)

	root := &model.User{ID: "root", Admin: true}
	u, err := svc.CreateUser(context.Background(), root, service.CreateUserRequest{Name: "alice"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	rec := &model.Instance{ID: "i1", ContainerID: "abc123", Image: "game:1.0", Node: ref, User: u.ID}
	if _, err := svc.Sync().Sync(context.Background(), "abc123", rec); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if w := request(t, router, http.MethodPost, "/api/instances/abc123/suspend", u.Token, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
	if w := request(t, router, http.MethodPost, "/api/instances/abc123/suspend", adminToken, nil); w.Code != http.StatusOK {
		t.Fatalf("admin suspend: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestReinstallIncompleteRecordReturns400(t *testing.T) {
	router, svc, _ := testSetup(t)

	rec := &model.Instance{ID: "i1", ContainerID: "abc123", Image: "game:1.0", User: "user-1"}
	if _, err := svc.Sync().Sync(context.Background(), "abc123", rec); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := request(t, router, http.MethodPost, "/api/instances/abc123/reinstall", adminToken, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Node") {
		t.Fatalf("response must list the missing Node field: %s", w.Body.String())
	}
}

func TestUnknownInstanceReturns404(t *testing.T) {
	router, _, _ := testSetup(t)
	if w := request(t, router, http.MethodGet, "/api/instances/ghost", adminToken, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
