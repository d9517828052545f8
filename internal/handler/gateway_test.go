package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	echomw "github.com/labstack/echo/v4/middleware"

	"merweb-gateway/internal/model"
	"merweb-gateway/internal/route"
)

// recordingBackend answers every request with status and body and records
// the last request it received.
type recordingBackend struct {
	status   int
	ctype    string
	location string
	body     string

	method  string
	uri     string
	header  http.Header
	reqBody string
}

func (b *recordingBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	b.method, b.uri, b.header, b.reqBody = r.Method, r.URL.RequestURI(), r.Header.Clone(), string(raw)
	if b.ctype != "" {
		w.Header().Set("Content-Type", b.ctype)
	}
	if b.location != "" {
		w.Header().Set("Location", b.location)
	}
	w.WriteHeader(b.status)
	_, _ = w.Write([]byte(b.body))
}

func serve(t *testing.T, backend *recordingBackend, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	e, _ := newTestGateway(t, srv.URL, false)

	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// routeRequests returns one concrete inbound request per route table entry.
func routeRequests(t *testing.T) []struct {
	ep     *route.Endpoint
	method string
	target string
	body   string
} {
	t.Helper()
	table, err := route.NewTable(nil)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	var out []struct {
		ep     *route.Endpoint
		method string
		target string
		body   string
	}
	for _, ep := range table.Endpoints() {
		for _, p := range ep.Patterns {
			body := ""
			if ep.Body == route.BodyForward {
				body = `{"k":"v"}`
			}
			out = append(out, struct {
				ep     *route.Endpoint
				method string
				target string
				body   string
			}{ep, ep.Method, strings.ReplaceAll(p, ":id", "1"), body})
		}
	}
	return out
}

func TestGateway_Passthrough(t *testing.T) {
	statuses := []int{http.StatusOK, http.StatusCreated, http.StatusNoContent, http.StatusFound}

	for _, rr := range routeRequests(t) {
		for _, status := range statuses {
			body := `{"data":[1,2,3], "note":"kept as-is"}`
			if status == http.StatusNoContent {
				body = ""
			}
			t.Run(rr.ep.Name+" "+rr.target+" "+http.StatusText(status), func(t *testing.T) {
				backend := &recordingBackend{status: status, ctype: "application/json", body: body}
				if status == http.StatusFound {
					backend.location = "/elsewhere"
				}
				rec := serve(t, backend, rr.method, rr.target, rr.body, nil)

				if rec.Code != status {
					t.Errorf("status = %d, want %d", rec.Code, status)
				}
				if rec.Body.String() != body {
					t.Errorf("body = %q, want %q", rec.Body.String(), body)
				}
				if got := rec.Header().Get("Location"); got != backend.location {
					t.Errorf("Location = %q, want %q", got, backend.location)
				}
			})
		}
	}
}

func TestGateway_ClientFailureJSONForwarded(t *testing.T) {
	statuses := []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict}
	body := `{"code":"E42","message":"nope"}`

	for _, rr := range routeRequests(t) {
		for _, status := range statuses {
			t.Run(rr.ep.Name+" "+rr.target+" "+http.StatusText(status), func(t *testing.T) {
				backend := &recordingBackend{status: status, ctype: "application/json", body: body}
				rec := serve(t, backend, rr.method, rr.target, rr.body, nil)

				if rec.Code != status {
					t.Errorf("status = %d, want %d", rec.Code, status)
				}
				if rec.Body.String() != body {
					t.Errorf("body = %q, want %q", rec.Body.String(), body)
				}
			})
		}
	}
}

func TestGateway_ClientFailureNonJSONEnveloped(t *testing.T) {
	for _, rr := range routeRequests(t) {
		t.Run(rr.ep.Name+" "+rr.target, func(t *testing.T) {
			backend := &recordingBackend{status: http.StatusUnauthorized, ctype: "text/plain", body: "Unauthorized"}
			rec := serve(t, backend, rr.method, rr.target, rr.body, nil)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var env model.Envelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			want := rr.ep.Operation + " failed: 401 Unauthorized"
			if !env.Error || env.Message != want {
				t.Errorf("envelope = %+v, want message %q", env, want)
			}
			if env.Body != "Unauthorized" {
				t.Errorf("envelope body = %q, want %q", env.Body, "Unauthorized")
			}
		})
	}
}

func TestGateway_ServerFailure(t *testing.T) {
	for _, rr := range routeRequests(t) {
		t.Run(rr.ep.Name+" "+rr.target, func(t *testing.T) {
			backend := &recordingBackend{status: http.StatusInternalServerError, body: "stack trace"}
			rec := serve(t, backend, rr.method, rr.target, rr.body, nil)

			if strings.Contains(rec.Body.String(), "stack trace") {
				t.Errorf("5xx body leaked to caller: %q", rec.Body.String())
			}

			if rr.ep.Policy == route.PolicyDegradeToEmptyList {
				if rec.Code != http.StatusOK {
					t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
				}
				var page model.DegradedList
				if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if page.List == nil || !page.Error || page.Message == "" {
					t.Errorf("degraded page = %+v", page)
				}
				return
			}

			if rec.Code != http.StatusBadGateway {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
			}
			var env model.Envelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			want := rr.ep.Operation + " failed: backend server error"
			if !env.Error || env.Message != want {
				t.Errorf("envelope = %+v, want message %q", env, want)
			}
		})
	}
}

func TestGateway_JournalsDegradeToEmptyList(t *testing.T) {
	backend := &recordingBackend{status: http.StatusInternalServerError, body: `{"message":"NPE"}`}
	rec := serve(t, backend, http.MethodGet, "/api/journals/?page=3&pageSize=4&date=2024-05-01", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if backend.uri != "/journals/?page=3&pageSize=4" {
		t.Errorf("backend uri = %q, want %q", backend.uri, "/journals/?page=3&pageSize=4")
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	list, ok := body["list"].([]any)
	if !ok || len(list) != 0 {
		t.Errorf("list = %v, want []", body["list"])
	}
	if body["total"] != float64(0) {
		t.Errorf("total = %v, want 0", body["total"])
	}
	if body["page"] != float64(3) || body["pageSize"] != float64(4) {
		t.Errorf("page/pageSize = %v/%v, want 3/4", body["page"], body["pageSize"])
	}
	if body["error"] != true {
		t.Errorf("error = %v, want true", body["error"])
	}
	if msg, _ := body["message"].(string); msg == "" {
		t.Error("message is empty")
	}
}

func TestGateway_BackendUnreachable(t *testing.T) {
	e, _ := newTestGateway(t, "http://127.0.0.1:1", false)

	for _, rr := range routeRequests(t) {
		t.Run(rr.ep.Name+" "+rr.target, func(t *testing.T) {
			var r io.Reader = http.NoBody
			if rr.body != "" {
				r = strings.NewReader(rr.body)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(rr.method, rr.target, r))

			if rec.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
			}
			var env model.Envelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			want := rr.ep.Operation + " failed: backend unavailable"
			if !env.Error || env.Message != want {
				t.Errorf("envelope = %+v, want message %q", env, want)
			}
		})
	}
}

func TestGateway_AuthorizationPropagated(t *testing.T) {
	backend := &recordingBackend{status: http.StatusOK, ctype: "application/json", body: `{}`}
	serve(t, backend, http.MethodGet, "/api/user/profile", "", http.Header{
		"Authorization": {"Bearer X"},
		"Cookie":        {"session=1"},
	})

	if got := backend.header.Get("Authorization"); got != "Bearer X" {
		t.Errorf("backend Authorization = %q, want %q", got, "Bearer X")
	}
	if got := backend.header.Get("Cookie"); got != "" {
		t.Errorf("backend Cookie = %q, want empty", got)
	}
	if backend.uri != "/user/profile" {
		t.Errorf("backend uri = %q, want %q", backend.uri, "/user/profile")
	}
}

func TestGateway_QueryBuilt(t *testing.T) {
	backend := &recordingBackend{status: http.StatusOK, ctype: "application/json", body: `{}`}
	serve(t, backend, http.MethodGet, "/api/user?page=2&pageSize=5&keyword=", "", nil)

	if backend.uri != "/user?page=2&pageSize=5" {
		t.Errorf("backend uri = %q, want %q", backend.uri, "/user?page=2&pageSize=5")
	}
}

func TestGateway_ResetPasswordPath(t *testing.T) {
	backend := &recordingBackend{status: http.StatusOK, ctype: "application/json", body: `{}`}
	serve(t, backend, http.MethodPost, "/api/forgot-password/reset/", `{"email":"a@b.c","code":"1"}`, nil)

	if backend.method != http.MethodPost || backend.uri != "/forgot-password/reset" {
		t.Errorf("backend request = %s %s, want POST /forgot-password/reset", backend.method, backend.uri)
	}
	if backend.reqBody != `{"email":"a@b.c","code":"1"}` {
		t.Errorf("backend body = %q", backend.reqBody)
	}
}

func TestGateway_InvalidIDRejected(t *testing.T) {
	backend := &recordingBackend{status: http.StatusOK, body: `{}`}
	rec := serve(t, backend, http.MethodGet, "/api/tasks/abc", "", nil)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if backend.method != "" {
		t.Errorf("backend was called: %s %s", backend.method, backend.uri)
	}
}

func TestGateway_OversizedBody(t *testing.T) {
	backend := &recordingBackend{status: http.StatusOK, body: `{}`}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	e, _ := newTestGateway(t, srv.URL, false)
	e.Use(echomw.BodyLimit("16B"))

	body := `{"title":"` + strings.Repeat("x", 64) + `"}`
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(body)))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
	if backend.method != "" {
		t.Errorf("backend was called: %s %s", backend.method, backend.uri)
	}
}
