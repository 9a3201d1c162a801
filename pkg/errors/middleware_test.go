package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func performRequest(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestErrorHandlerMapsAppError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/boom", func(c *gin.Context) {
		c.Error(NewBridgeFailureError("Failed to send message", map[string]string{"restored_draft": "hello"}))
	})

	w := performRequest(r, http.MethodGet, "/boom")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var body struct {
		Error struct {
			Code    string            `json:"code"`
			Message string            `json:"message"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, CodeBridgeFailure, body.Error.Code)
	assert.Equal(t, "Failed to send message", body.Error.Message)
	assert.Equal(t, "hello", body.Error.Details["restored_draft"])
}

func TestErrorHandlerWrapsUnknownErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/boom", func(c *gin.Context) {
		c.Error(assertableError("plain failure"))
	})

	w := performRequest(r, http.MethodGet, "/boom")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "SERVER_ERROR")
}

func TestRecoveryWithLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryWithLogger())
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := performRequest(r, http.MethodGet, "/panic")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "SERVER_ERROR")
}

func TestAuthRequiredCarriesRedirect(t *testing.T) {
	err := NewAuthRequiredError("/conversations?category=recent")
	assert.Equal(t, http.StatusUnauthorized, err.StatusCode)
	assert.Equal(t, CodeAuthRequired, err.Code)
	assert.Equal(t, map[string]string{"redirect_to": "/conversations?category=recent"}, err.Details)
}

type assertableError string

func (e assertableError) Error() string { return string(e) }
