package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/residency-backend/api/middleware"
	"github.com/angelmondragon/residency-backend/pkg/enums"
	"github.com/angelmondragon/residency-backend/pkg/identity"
)

type requestOpts struct {
	email  string
	role   enums.Role
	params map[string]string
}

func newRequest(method, target, body string, opts requestOpts) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := req.Context()
	if opts.email != "" {
		ctx = middleware.WithIdentity(ctx, &identity.Identity{Email: opts.email, DisplayName: "Test Caller"})
	}
	if opts.role != "" {
		ctx = middleware.WithRole(ctx, opts.role)
	}
	if len(opts.params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range opts.params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	envelope := struct {
		Data any `json:"data"`
	}{Data: out}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope.Error.Code
}

func containsBody(body, want string) bool {
	return strings.Contains(body, want)
}
