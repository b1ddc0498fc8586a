package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/geekinsanemx/sms-gateway/internal/auth"
	"github.com/geekinsanemx/sms-gateway/internal/engine"
	"github.com/geekinsanemx/sms-gateway/internal/phone"
	"github.com/geekinsanemx/sms-gateway/internal/service"
	"github.com/geekinsanemx/sms-gateway/internal/store"
)

type stubRunner bool

func (s stubRunner) IsRunning() bool { return bool(s) }

func newTestServer(t *testing.T) (http.Handler, *service.Service) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	path := filepath.Join(t.TempDir(), "htpasswd")
	content := fmt.Sprintf("alice:%s\nbob:%s\n", hash, hash)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write htpasswd file: %v", err)
	}

	s := store.New()
	q := engine.NewQueue()
	n := phone.NewNormalizer("+52", []string{"2222", "7373", "333"})
	svc := service.New(s, q, n, service.Config{
		ContentMax:         160,
		DefaultReplyWindow: time.Minute,
		MaxReplyWindow:     10 * time.Minute,
	})

	h := NewHandler(svc, auth.NewHtpasswd(path), stubRunner(true), stubRunner(true))
	return Router(h), svc
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("failed to decode json: %v body=%q", err, rr.Body.String())
	}
	return m
}

func postJSON(mux http.Handler, body, user, pass string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestSubmit_RequiresAuth(t *testing.T) {
	t.Parallel()

	mux, _ := newTestServer(t)

	t.Run("no credentials", func(t *testing.T) {
		rr := postJSON(mux, `{"number":"1234567890","message":"hi"}`, "", "")
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d body=%q", rr.Code, rr.Body.String())
		}
		if got := rr.Header().Get("WWW-Authenticate"); !strings.Contains(got, "Basic") {
			t.Fatalf("expected WWW-Authenticate header, got %q", got)
		}
		body := decodeJSON(t, rr)
		if body["error_code"] != "AUTHENTICATION_REQUIRED" {
			t.Fatalf("expected AUTHENTICATION_REQUIRED, got %v", body)
		}
	})

	t.Run("bad password", func(t *testing.T) {
		rr := postJSON(mux, `{"number":"1234567890","message":"hi"}`, "alice", "wrong")
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
	})
}

func TestSubmit_HappyPath(t *testing.T) {
	t.Parallel()

	mux, svc := newTestServer(t)

	rr := postJSON(mux, `{"number":"1234567890","message":"hello"}`, "alice", "secret")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}

	body := decodeJSON(t, rr)
	if body["status"] != "queued" {
		t.Fatalf("expected status queued, got %v", body["status"])
	}
	id, _ := body["message_id"].(string)
	if id == "" {
		t.Fatalf("expected a message_id, got %v", body)
	}
	if body["from"] != "alice" {
		t.Fatalf("expected from=alice, got %v", body["from"])
	}
	if body["to"] != "1234567890" {
		t.Fatalf("expected to echo the submitted number, got %v", body["to"])
	}
	// reply is present and null until a reply is correlated.
	if v, present := body["reply"]; !present || v != nil {
		t.Fatalf("expected reply:null, got %v (present=%v)", v, present)
	}

	if _, ok := svc.Query(id, "alice"); !ok {
		t.Fatalf("expected the record to be queryable by its owner")
	}
}

func TestSubmit_CaseInsensitiveFieldsAndNumericNumber(t *testing.T) {
	t.Parallel()

	mux, _ := newTestServer(t)

	rr := postJSON(mux, `{"Number":1234567890,"MESSAGE":"hi","Reply":true,"Timeout":"120"}`, "alice", "secret")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}

	body := decodeJSON(t, rr)
	if body["status"] != "queued" {
		t.Fatalf("expected status queued, got %v", body)
	}
}

func TestSubmit_BadRequests(t *testing.T) {
	t.Parallel()

	mux, _ := newTestServer(t)

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantCode    string
	}{
		{
			name:        "wrong content type",
			contentType: "text/plain",
			body:        `{"number":"1234567890","message":"hi"}`,
			wantStatus:  http.StatusUnsupportedMediaType,
			wantCode:    "INVALID_CONTENT_TYPE",
		},
		{
			name:        "invalid json",
			contentType: "application/json",
			body:        `{"number":`,
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_JSON",
		},
		{
			name:        "missing number",
			contentType: "application/json",
			body:        `{"message":"hi"}`,
			wantStatus:  http.StatusBadRequest,
			wantCode:    "MISSING_REQUIRED_FIELDS",
		},
		{
			name:        "missing message",
			contentType: "application/json",
			body:        `{"number":"1234567890"}`,
			wantStatus:  http.StatusBadRequest,
			wantCode:    "MISSING_REQUIRED_FIELDS",
		},
		{
			name:        "invalid phone number",
			contentType: "application/json",
			body:        `{"number":"garbage","message":"hi"}`,
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_PHONE_NUMBER",
		},
		{
			name:        "timeout not a number",
			contentType: "application/json",
			body:        `{"number":"1234567890","message":"hi","reply":true,"timeout":"soon"}`,
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_TIMEOUT_FORMAT",
		},
		{
			name:        "timeout out of range",
			contentType: "application/json",
			body:        `{"number":"1234567890","message":"hi","reply":true,"timeout":999}`,
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_TIMEOUT_VALUE",
		},
		{
			name:        "timeout zero",
			contentType: "application/json",
			body:        `{"number":"1234567890","message":"hi","reply":true,"timeout":0}`,
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_TIMEOUT_VALUE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			req.SetBasicAuth("alice", "secret")
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d body=%q", tt.wantStatus, rr.Code, rr.Body.String())
			}
			body := decodeJSON(t, rr)
			if body["error_code"] != tt.wantCode {
				t.Fatalf("expected error code %q, got %v", tt.wantCode, body["error_code"])
			}
		})
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	mux, _ := newTestServer(t)

	rr := postJSON(mux, `{"number":"1234567890","message":"hello"}`, "alice", "secret")
	if rr.Code != http.StatusOK {
		t.Fatalf("submit failed: %d body=%q", rr.Code, rr.Body.String())
	}
	id, _ := decodeJSON(t, rr)["message_id"].(string)

	get := func(query, user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/status"+query, nil)
		req.SetBasicAuth(user, "secret")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	t.Run("owner sees the record", func(t *testing.T) {
		rec := get("?message_id="+id, "alice")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%q", rec.Code, rec.Body.String())
		}
		body := decodeJSON(t, rec)
		if body["message_id"] != id || body["status"] != "queued" {
			t.Fatalf("unexpected envelope: %v", body)
		}
	})

	t.Run("another user gets 404", func(t *testing.T) {
		rec := get("?message_id="+id, "bob")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for another requester, got %d", rec.Code)
		}
		if body := decodeJSON(t, rec); body["error_code"] != "NOT_FOUND" {
			t.Fatalf("expected NOT_FOUND, got %v", body)
		}
	})

	t.Run("unknown id gets 404", func(t *testing.T) {
		rec := get("?message_id=missing", "alice")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("missing message_id gets 400", func(t *testing.T) {
		rec := get("", "alice")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if body := decodeJSON(t, rec); body["error_code"] != "MISSING_REQUIRED_FIELDS" {
			t.Fatalf("expected MISSING_REQUIRED_FIELDS, got %v", body)
		}
	})
}

func TestHealth_Unauthenticated(t *testing.T) {
	t.Parallel()

	mux, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("expected Content-Type application/json, got %q", ct)
	}

	body := decodeJSON(t, rr)
	if body["status"] != "ok" || body["service"] != "sms-gateway" {
		t.Fatalf("unexpected health body: %v", body)
	}
	if running, ok := body["worker_running"].(bool); !ok || !running {
		t.Fatalf("expected worker_running=true, got %v", body)
	}
	if depth, ok := body["queue_depth"].(float64); !ok || depth != 0 {
		t.Fatalf("expected queue_depth=0, got %v", body["queue_depth"])
	}
}
