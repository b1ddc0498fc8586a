package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/geekinsanemx/sms-gateway/internal/auth"
	"github.com/geekinsanemx/sms-gateway/internal/model"
	"github.com/geekinsanemx/sms-gateway/internal/service"
)

const serviceName = "sms-gateway"

const (
	codeAuthenticationRequired = "AUTHENTICATION_REQUIRED"
	codeInvalidContentType     = "INVALID_CONTENT_TYPE"
	codeInvalidJSON            = "INVALID_JSON"
	codeMissingRequiredFields  = "MISSING_REQUIRED_FIELDS"
	codeInvalidTimeoutFormat   = "INVALID_TIMEOUT_FORMAT"
	codeNotFound               = "NOT_FOUND"
)

// Runner reports whether a background component is alive; satisfied by both
// the send worker and the scheduler.
type Runner interface {
	IsRunning() bool
}

type Handler struct {
	svc    *service.Service
	creds  *auth.Htpasswd
	worker Runner
	sched  Runner
}

func NewHandler(svc *service.Service, creds *auth.Htpasswd, worker, sched Runner) *Handler {
	return &Handler{svc: svc, creds: creds, worker: worker, sched: sched}
}

type replyPayload struct {
	Text           string `json:"text"`
	ReceivedAt     string `json:"received_at,omitempty"`
	ElapsedSeconds int64  `json:"elapsed_seconds"`
}

// envelope is the uniform response shape; reply stays null until a reply is
// correlated.
type envelope struct {
	Status       string            `json:"status"`
	MessageID    string            `json:"message_id,omitempty"`
	Timestamp    string            `json:"timestamp,omitempty"`
	To           string            `json:"to,omitempty"`
	From         string            `json:"from,omitempty"`
	Message      string            `json:"message,omitempty"`
	Reply        *replyPayload     `json:"reply"`
	ErrorCode    string            `json:"error_code,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Meta         model.Annotations `json:"meta,omitempty"`
}

type ctxKey int

const usernameKey ctxKey = 0

func usernameFrom(r *http.Request) string {
	user, _ := r.Context().Value(usernameKey).(string)
	return user
}

func (h *Handler) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || !h.creds.Verify(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="sms-gateway"`)
			writeError(w, http.StatusUnauthorized, codeAuthenticationRequired, "valid credentials are required")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), usernameKey, user)))
	})
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		writeError(w, http.StatusUnsupportedMediaType, codeInvalidContentType, "Content-Type must be application/json")
		return
	}

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "request body is not valid JSON")
		return
	}

	// Field names are accepted case-insensitively.
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		fields[strings.ToLower(k)] = v
	}

	number, okNumber := stringField(fields["number"])
	body, okBody := fields["message"].(string)
	if !okNumber || number == "" || !okBody || body == "" {
		writeError(w, http.StatusBadRequest, codeMissingRequiredFields, "fields 'number' and 'message' are required")
		return
	}

	requiresReply, _ := fields["reply"].(bool)

	var windowSeconds *int
	if v, present := fields["timeout"]; present {
		secs, err := parseTimeout(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidTimeoutFormat, "timeout must be an integer number of seconds")
			return
		}
		windowSeconds = &secs
	}

	created, err := h.svc.Submit(service.SubmitRequest{
		Number:        number,
		Body:          body,
		Requester:     usernameFrom(r),
		ClientIP:      clientIP(r),
		RequiresReply: requiresReply,
		WindowSeconds: windowSeconds,
	})
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Code, verr.Detail)
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, messageEnvelope(created))
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("message_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeMissingRequiredFields, "query parameter 'message_id' is required")
		return
	}

	m, ok := h.svc.Query(id, usernameFrom(r))
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "message not found")
		return
	}

	writeJSON(w, http.StatusOK, messageEnvelope(m))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"service":           serviceName,
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
		"queue_depth":       h.svc.QueueDepth(),
		"worker_running":    h.worker.IsRunning(),
		"scheduler_running": h.sched.IsRunning(),
	})
}

func messageEnvelope(m model.Message) envelope {
	ts := m.CreatedAt
	if m.SentAt != nil {
		ts = *m.SentAt
	}

	env := envelope{
		Status:       string(m.Status),
		MessageID:    m.ID,
		Timestamp:    ts.UTC().Format(time.RFC3339),
		To:           m.OriginalNumber,
		From:         m.Requester,
		Message:      m.Body,
		ErrorCode:    string(m.FailureCode),
		ErrorMessage: m.FailureDetail,
		Meta:         m.Annotations,
	}

	if m.ReplyText != nil {
		rp := &replyPayload{Text: *m.ReplyText}
		if m.ReplyAt != nil {
			rp.ReceivedAt = m.ReplyAt.UTC().Format(time.RFC3339)
		}
		if m.ElapsedSeconds != nil {
			rp.ElapsedSeconds = *m.ElapsedSeconds
		}
		env.Reply = rp
	}

	return env
}

// stringField accepts both "number": "5512345678" and "number": 5512345678.
func stringField(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

func parseTimeout(v any) (int, error) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, err
		}
		return int(n), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(t))
	default:
		return 0, errors.New("unsupported timeout type")
	}
}

func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, envelope{
		Status:       "error",
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		ErrorCode:    code,
		ErrorMessage: detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
