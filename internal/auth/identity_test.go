package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"kidsmoney/internal/model"
)

func TestResolve(t *testing.T) {
	r := NewResolver([]string{"boss_1", "both_1"}, []string{" bank_1 ", "both_1"})
	tests := []struct {
		header string
		cookie string
		want   model.Role
		id     string
	}{
		{header: "kid_one", want: model.RolePlayer, id: "kid_one"},
		{header: "boss_1", want: model.RoleAdmin, id: "boss_1"},
		{header: "bank_1", want: model.RoleBanker, id: "bank_1"},
		{header: "both_1", want: model.RoleAdmin, id: "both_1"},
		{cookie: "kid_two", want: model.RolePlayer, id: "kid_two"},
		{header: "kid_one", cookie: "boss_1", want: model.RolePlayer, id: "kid_one"},
	}
	for _, tc := range tests {
		req := httptest.NewRequest("GET", "/v1/state", nil)
		if tc.header != "" {
			req.Header.Set(HeaderName, tc.header)
		}
		if tc.cookie != "" {
			req.Header.Set("Cookie", CookieName+"="+tc.cookie)
		}
		got, err := r.Resolve(req)
		if err != nil {
			t.Fatalf("resolve %+v: %v", tc, err)
		}
		if got.UserID != tc.id || got.Role != tc.want {
			t.Fatalf("resolve %+v = %+v", tc, got)
		}
	}
}

func TestResolveRejects(t *testing.T) {
	r := NewResolver(nil, nil)
	req := httptest.NewRequest("GET", "/", nil)
	if _, err := r.Resolve(req); !errors.Is(err, ErrMissingIdentity) {
		t.Fatalf("err = %v", err)
	}
	for _, bad := range []string{"ab", "has space", "semi;colon"} {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(HeaderName, bad)
		if _, err := r.Resolve(req); err == nil {
			t.Fatalf("id %q accepted", bad)
		}
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{UserID: "kid_one", Role: model.RolePlayer})
	id, ok := FromContext(ctx)
	if !ok || id.UserID != "kid_one" {
		t.Fatalf("identity = %+v ok=%v", id, ok)
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("empty context has an identity")
	}
}
