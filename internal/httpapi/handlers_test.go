package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["status"] != "ok" || body["version"] != "test" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestReadyReportsDatabaseFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	env := newTestEnv(t)
	deps := env.api.deps
	deps.Ready = ReadyProbe{DB: db, Cache: env.cache}
	env.api = New(deps, env.api.opts)

	mock.ExpectPing()
	if rr := env.do(t, http.MethodGet, "/readyz", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	if rr := env.do(t, http.MethodGet, "/readyz", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOpenAPIServed(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/v1/docs/openapi.yaml", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.HasPrefix(rr.Body.String(), "openapi:") {
		t.Fatalf("unexpected document: %.40s", rr.Body.String())
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/v1/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestSampleEmojiAndChat(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/v1/sample/emoji", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "😀") {
		t.Fatalf("unexpected emoji response: %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/v1/sample/chat", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Dixit") || strings.Contains(rr.Body.String(), "{{username}}") {
		t.Fatalf("template not rendered: %s", rr.Body.String())
	}
}

func TestSampleMail(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/v1/sample/mail", map[string]string{"to": "a@example.com", "subject": "Hi", "text": "hello"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(env.mailer.sent) != 1 || env.mailer.sent[0].To != "a@example.com" {
		t.Fatalf("unexpected sent mail: %+v", env.mailer.sent)
	}

	env.mailer.err = errors.New("smtp down")
	rr = env.do(t, http.MethodPost, "/api/v1/sample/mail", map[string]string{"to": "a@example.com", "subject": "Hi", "text": "hello"})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error"] != "Mail not sent !" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestSampleCacheRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/v1/sample/cache/write", map[string]any{"cachekey": "greeting", "cachevalue": "hello", "cachettl": 60})
	if rr.Code != http.StatusOK {
		t.Fatalf("write: expected 200, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/v1/sample/cache/read", map[string]any{"cachekey": "greeting"})
	if rr.Code != http.StatusOK {
		t.Fatalf("read: expected 200, got %d", rr.Code)
	}
	data := decodeBody(t, rr)["data"].(map[string]any)
	if data["cacheValue"] != "hello" {
		t.Fatalf("unexpected cache value: %v", data)
	}

	rr = env.do(t, http.MethodPost, "/api/v1/sample/cache/read", map[string]any{"cachekey": "missing"})
	data = decodeBody(t, rr)["data"].(map[string]any)
	if data["cacheValue"] != nil {
		t.Fatalf("missing key should read as null: %v", data)
	}

	rr = env.do(t, http.MethodPost, "/api/v1/sample/cache/write", map[string]any{"cachevalue": "x"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing key: expected 400, got %d", rr.Code)
	}
}
