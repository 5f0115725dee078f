package middleware

import (
	"context"
	"encoding/json"
	defError "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"approval-workflow/auth"
	"approval-workflow/internal/domain"
	"approval-workflow/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubActors struct {
	actors map[uuid.UUID]*domain.Actor
}

func (s stubActors) GetActor(ctx context.Context, id uuid.UUID) (*domain.Actor, error) {
	if a, ok := s.actors[id]; ok {
		return a, nil
	}
	return nil, defError.New("no such actor")
}

func setupRouter(provider ActorProvider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandler(nil))
	m := &Auth{Actors: provider}
	router.GET("/me", m.AuthMiddleWare(), func(c *gin.Context) {
		a, _ := c.Get(ActorKey)
		c.JSON(http.StatusOK, a)
	})
	return router
}

func TestAuthMiddleWare(t *testing.T) {
	auth.SetSecret("middleware-secret")
	known := &domain.Actor{ID: uuid.New(), GlobalRoles: []string{"BEM_ADMIN"}}
	router := setupRouter(stubActors{actors: map[uuid.UUID]*domain.Actor{known.ID: known}})

	good, err := auth.GenerateJWT(known.ID, time.Hour)
	require.NoError(t, err)
	unknown, err := auth.GenerateJWT(uuid.New(), time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"bearer header", "Bearer " + good, "", http.StatusOK},
		{"token query", "", good, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", "", http.StatusUnauthorized},
		{"unknown actor", "Bearer " + unknown, "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "/me"
			if tt.query != "" {
				url += "?token=" + tt.query
			}
			req, _ := http.NewRequest(http.MethodGet, url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				var got domain.Actor
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
				assert.Equal(t, known.ID, got.ID)
			}
		})
	}
}

func TestErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandler(nil))
	router.GET("/conflict", func(c *gin.Context) {
		c.Error(errors.Conflict("PENDING", "APPROVED", nil))
	})
	router.GET("/raw", func(c *gin.Context) {
		c.Error(defError.New("boom"))
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/conflict", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "0", w.Header().Get("Retry-After"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "conflict", body["code"])
	assert.Equal(t, "APPROVED", body["details"].(map[string]any)["current_state"])

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/raw", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}
