package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/trockboppro/v4panel/internal/panel/model"
)

type staticResolver struct {
	users map[string]*model.User
}

func (r *staticResolver) ResolveToken(ctx context.Context, token string) (*model.User, error) {
	if u, ok := r.users[token]; ok {
		return u, nil
	}
	return nil, &model.AuthorizationError{Msg: "unknown token"}
}

func testRouter(adminToken string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	resolver := &staticResolver{users: map[string]*model.User{
		"tok-1": {ID: "user-1", Name: "alice"},
	}}
	r := gin.New()
	r.Use(Authentication(resolver, adminToken))
	r.GET("/whoami", func(c *gin.Context) {
		u := Caller(c)
		c.JSON(http.StatusOK, gin.H{"id": u.ID, "admin": u.Admin})
	})
	return r
}

func do(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticationRejectsMissingToken(t *testing.T) {
	if w := do(testRouter(""), ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthenticationRejectsUnknownToken(t *testing.T) {
	if w := do(testRouter(""), "Bearer nope"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthenticationResolvesUser(t *testing.T) {
	w := do(testRouter(""), "Bearer tok-1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuthenticationAdminToken(t *testing.T) {
	w := do(testRouter("super-secret"), "Bearer super-secret")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, `"admin":true`) {
		t.Fatalf("expected synthetic admin, got %s", body)
	}
}
