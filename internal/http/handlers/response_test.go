package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-discord-bot/internal/http/middleware"
	"github.com/tbourn/go-discord-bot/internal/repo"
	"github.com/tbourn/go-discord-bot/internal/services"
)

// errorEngine serves GET /err, which fails with whatever err holds.
func errorEngine(err *error) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger())
	r.GET("/err", func(c *gin.Context) { failFor(c, *err) })
	return r
}

func TestFailFor_Mappings(t *testing.T) {
	var err error
	r := errorEngine(&err)

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrReminderNotFound, http.StatusNotFound, ErrCodeNotFound},
		{fmt.Errorf("update: %w", services.ErrReminderNotFound), http.StatusNotFound, ErrCodeNotFound},
		{services.ErrInvalidDateTime, http.StatusUnprocessableEntity, ErrCodeInvalidDateTime},
		{services.ErrPastDateTime, http.StatusUnprocessableEntity, ErrCodeInvalidDateTime},
		{services.ErrTextEmpty, http.StatusUnprocessableEntity, ErrCodeInvalidText},
		{services.ErrTextTooLong, http.StatusUnprocessableEntity, ErrCodeInvalidText},
		{services.ErrInvalidRecur, http.StatusUnprocessableEntity, ErrCodeInvalidRecur},
		{services.ErrNoGifs, http.StatusNotFound, ErrCodeEmptyPool},
		{services.ErrInvalidGifURL, http.StatusUnprocessableEntity, ErrCodeInvalidURL},
		{services.ErrDuplicateGif, http.StatusConflict, ErrCodeConflict},
		{fmt.Errorf("list: %w: dial tcp 10.0.0.1:5432", repo.ErrUnavailable), http.StatusServiceUnavailable, ErrCodeUnavailable},
		{errors.New("pq: relation does not exist"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tc := range cases {
		err = tc.err
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/err", nil))

		if w.Code != tc.status {
			t.Fatalf("%v: status = %d; want %d", tc.err, w.Code, tc.status)
		}
		got := decode[ErrorResponse](t, w)
		if got.Code != tc.code || got.Message == "" {
			t.Fatalf("%v: envelope = %+v; want code %q", tc.err, got, tc.code)
		}
		if got.RequestID == "" || got.RequestID != w.Header().Get("X-Request-ID") {
			t.Fatalf("%v: request id %q vs header %q", tc.err, got.RequestID, w.Header().Get("X-Request-ID"))
		}
		if strings.Contains(got.Message, "dial tcp") || strings.Contains(got.Message, "pq:") {
			t.Fatalf("%v: backend detail leaked: %q", tc.err, got.Message)
		}
	}
}

func TestFail_ServerErrorsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)

	err := fmt.Errorf("ping: %w", repo.ErrUnavailable)
	r := errorEngine(&err)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/err", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
	out := buf.String()
	if !strings.Contains(out, `"message":"api error"`) || !strings.Contains(out, `"code":"storage_unavailable"`) {
		t.Fatalf("expected api error log line, got: %s", out)
	}
	if !strings.Contains(out, "storage unavailable") {
		t.Fatalf("wrapped error not recorded on the access log: %s", out)
	}

	buf.Reset()
	err = services.ErrReminderNotFound
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/err", nil))
	if strings.Contains(buf.String(), "api error") {
		t.Fatalf("4xx must not produce an api error line: %s", buf.String())
	}
}

func TestSuccessHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/gifs", func(c *gin.Context) { ok(c, http.StatusCreated, AddGifResponse{Total: 3}) })
	r.DELETE("/reminders/1", func(c *gin.Context) { noContent(c) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/gifs", nil))
	if w.Code != http.StatusCreated || decode[AddGifResponse](t, w).Total != 3 {
		t.Fatalf("ok helper: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/reminders/1", nil))
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("noContent helper: %d %q", w.Code, w.Body.String())
	}
}
