package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jogardn/safety-storefront/internal/apperr"
	"github.com/lib/pq"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func newTestResponder(production bool) *Responder {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewResponder(logger, production)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestErrorTranslation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", apperr.Invalid("items", "items are required"), http.StatusBadRequest},
		{"conflict", apperr.Conflict("email", nil), http.StatusConflict},
		{"unique violation", &pq.Error{Code: "23505", Table: "users", Constraint: "users_email_key"}, http.StatusConflict},
		{"not found", apperr.NotFound("order"), http.StatusNotFound},
		{"unauthorized", apperr.Unauthorized("login required"), http.StatusUnauthorized},
		{"forbidden", apperr.Forbidden("admins only"), http.StatusForbidden},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError},
	}

	rs := newTestResponder(true)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			rs.Error(rec, httptest.NewRequest(http.MethodGet, "/x", nil), tt.err)
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
			body := decodeBody(t, rec)
			if body.Success {
				t.Error("success must be false")
			}
			if body.Message == "" {
				t.Error("message must not be empty")
			}
		})
	}
}

func TestErrorTranslationDetails(t *testing.T) {
	rs := newTestResponder(true)

	rec := httptest.NewRecorder()
	rs.Error(rec, httptest.NewRequest(http.MethodPost, "/x", nil), &pq.Error{Code: "23505", Table: "users", Constraint: "users_email_key"})
	if body := decodeBody(t, rec); body.Field != "email" {
		t.Errorf("conflict field = %q", body.Field)
	}

	rec = httptest.NewRecorder()
	rs.Error(rec, httptest.NewRequest(http.MethodPost, "/x", nil), apperr.Validation(map[string]string{"qty": "qty must be positive"}))
	if body := decodeBody(t, rec); body.Errors["qty"] != "qty must be positive" {
		t.Errorf("errors = %v", body.Errors)
	}
}

func TestStackOnlyOutsideProduction(t *testing.T) {
	err := pkgerrors.Wrap(errors.New("boom"), "load order")

	rec := httptest.NewRecorder()
	newTestResponder(false).Error(rec, httptest.NewRequest(http.MethodGet, "/x", nil), err)
	if body := decodeBody(t, rec); body.Stack == "" || body.Message != "load order: boom" {
		t.Errorf("development response should carry a stack: %+v", body)
	}

	rec = httptest.NewRecorder()
	newTestResponder(true).Error(rec, httptest.NewRequest(http.MethodGet, "/x", nil), err)
	if body := decodeBody(t, rec); body.Stack != "" {
		t.Error("production response must not carry a stack")
	}
}

func TestStackCapturedForPlainErrors(t *testing.T) {
	err := fmt.Errorf("list orders: %w", errors.New("connection refused"))

	rec := httptest.NewRecorder()
	newTestResponder(false).Error(rec, httptest.NewRequest(http.MethodGet, "/x", nil), err)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body.Stack == "" {
		t.Fatal("development 500 should carry a stack for fmt-wrapped errors")
	}
	if body.Message != "list orders: connection refused" {
		t.Errorf("message = %q", body.Message)
	}

	rec = httptest.NewRecorder()
	newTestResponder(true).Error(rec, httptest.NewRequest(http.MethodGet, "/x", nil), err)
	if body := decodeBody(t, rec); body.Stack != "" {
		t.Error("production response must not carry a stack")
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		query string
		want  Page
	}{
		{"", Page{Page: 1, Limit: DefaultPageSize}},
		{"?page=3&limit=10", Page{Page: 3, Limit: 10}},
		{"?page=-1&limit=abc", Page{Page: 1, Limit: DefaultPageSize}},
		{"?limit=1000", Page{Page: 1, Limit: MaxPageSize}},
	}
	for _, tt := range tests {
		got := ParsePage(httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil))
		if got != tt.want {
			t.Errorf("ParsePage(%q) = %+v, want %+v", tt.query, got, tt.want)
		}
	}

	if off := (Page{Page: 3, Limit: 10}).Offset(); off != 20 {
		t.Errorf("offset = %d", off)
	}
	if p := NewPaged(nil, 21, Page{Page: 1, Limit: 10}); p.TotalPages != 3 {
		t.Errorf("total pages = %d", p.TotalPages)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	rs := newTestResponder(true)
	h := RecoverMiddleware(rs)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil map")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc" || rec.Header().Get(HeaderRequestID) != "abc" {
		t.Fatalf("request id not propagated: %q", seen)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" {
		t.Fatal("expected generated request id")
	}
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	tests := []struct {
		name            string
		configured      string
		wantOrigin      string
		wantCredentials string
	}{
		{"storefront origin", "https://shop.example.com", "https://shop.example.com", "true"},
		{"wildcard never reflects", "*", "*", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
			req.Header.Set("Origin", "https://evil.example.net")
			rec := httptest.NewRecorder()
			CORSMiddleware(tt.configured)(next).ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCredentials {
				t.Errorf("allow credentials = %q, want %q", got, tt.wantCredentials)
			}
			if rec.Code != http.StatusTeapot {
				t.Errorf("status = %d", rec.Code)
			}
		})
	}

	rec := httptest.NewRecorder()
	CORSMiddleware("*")(next).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/products", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d", rec.Code)
	}
}
