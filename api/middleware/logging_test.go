package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/cartline-backend/pkg/logger"
)

func TestLoggingRecordsRouteAndStatus(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf, Format: logger.FormatJSON})

	router := chi.NewRouter()
	router.Use(Logging(logg))
	router.Get("/cart/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/cart/42", nil))

	assert.Equal(t, http.StatusAccepted, resp.Code)
	entry := buf.String()
	assert.Contains(t, entry, `"message":"request.complete"`)
	assert.Contains(t, entry, `"route":"/cart/{id}"`)
	assert.Contains(t, entry, `"status":202`)
	assert.Contains(t, entry, `"bytes":2`)
	assert.Contains(t, entry, `"path":"/cart/42"`)
}

func TestLoggingWithoutLoggerPassesThrough(t *testing.T) {
	resp := httptest.NewRecorder()
	Logging(nil)(okHandler()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}
