package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/lumina-learn/lumina/pkg/auth"
	"github.com/lumina-learn/lumina/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCreateSession_RequiresCredential(t *testing.T) {
	resolver := auth.NewResolver(config.AuthConfig{SigningSecret: "test-secret"})
	server := NewServer(nil, nil, nil, resolver)
	router := server.Router()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	resolver := auth.NewResolver(config.AuthConfig{SigningSecret: "test-secret"})
	server := NewServer(nil, nil, nil, resolver)
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
