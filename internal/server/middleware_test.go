package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"chanlinks-go/internal/config"
	appctx "chanlinks-go/internal/context"
)

func TestCreatorMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   int64
	}{
		{name: "valid id", header: "123456", want: 123456},
		{name: "padded id", header: " 42 ", want: 42},
		{name: "missing header", header: "", want: 0},
		{name: "not a number", header: "abc", want: 0},
		{name: "negative", header: "-5", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got int64
			h := CreatorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if c := appctx.GetCreatorFromContext(r.Context()); c != nil {
					got = c.TelegramID
				}
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(CreatorHeader, tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequireCreator(t *testing.T) {
	called := false
	h := CreatorMiddleware(RequireCreator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/links", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)

	req := httptest.NewRequest(http.MethodGet, "/links", nil)
	req.Header.Set(CreatorHeader, "9")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, called)
}

func TestRequestLogger_PassesStatusThrough(t *testing.T) {
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCorsOptions_DefaultsToAnyOrigin(t *testing.T) {
	assert.Equal(t, []string{"https://*", "http://*"}, corsOptions(&config.Config{}).AllowedOrigins)
	assert.Equal(t, []string{"https://app.example.com"},
		corsOptions(&config.Config{CORSOrigins: []string{"https://app.example.com"}}).AllowedOrigins)
}
