package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/gfrate/internal/model"
)

// TestIdentityMiddleware_RegisteredUser はX-User-IDヘッダーから
// 登録ユーザーの投票者がコンテキストに注入されることを検証する。
func TestIdentityMiddleware_RegisteredUser(t *testing.T) {
	mw := NewIdentityMiddleware()

	var captured model.Voter
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = VoterFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("X-User-ID", "user-123")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if captured.UserID != "user-123" {
		t.Errorf("userID = %q, want %q", captured.UserID, "user-123")
	}
	if captured.IsAnonymous() {
		t.Error("voter should be registered")
	}
}

// TestIdentityMiddleware_AnonymousToken はX-Anonymous-Tokenヘッダーから
// 匿名の投票者がコンテキストに注入されることを検証する。
func TestIdentityMiddleware_AnonymousToken(t *testing.T) {
	mw := NewIdentityMiddleware()

	var captured model.Voter
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = VoterFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("X-Anonymous-Token", "device-abc")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if captured.AnonymousID != "device-abc" {
		t.Errorf("anonymousID = %q, want %q", captured.AnonymousID, "device-abc")
	}
	if !captured.IsAnonymous() {
		t.Error("voter should be anonymous")
	}
}

// TestIdentityMiddleware_BothHeaders_PrefersRegistered は両方のヘッダーがある場合に
// 登録ユーザーとして扱われることを検証する。
func TestIdentityMiddleware_BothHeaders_PrefersRegistered(t *testing.T) {
	mw := NewIdentityMiddleware()

	var captured model.Voter
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = VoterFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/test", nil)
	req.Header.Set("X-User-ID", "user-123")
	req.Header.Set("X-Anonymous-Token", "device-abc")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if captured.UserID != "user-123" {
		t.Errorf("userID = %q, want %q", captured.UserID, "user-123")
	}
	if captured.AnonymousID != "" {
		t.Errorf("anonymousID should be empty, got %q", captured.AnonymousID)
	}
}

// TestIdentityMiddleware_NoHeaders_PassesWithoutVoter はヘッダーなしのリクエストが
// 識別情報なしで通過することを検証する。
func TestIdentityMiddleware_NoHeaders_PassesWithoutVoter(t *testing.T) {
	mw := NewIdentityMiddleware()

	handlerCalled := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		if _, err := VoterFromContext(r.Context()); err == nil {
			t.Error("expected no voter in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !handlerCalled {
		t.Error("handler should have been called")
	}
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

// TestIdentityMiddleware_OversizedHeader_Returns400 は長すぎる識別子が拒否されることを検証する。
func TestIdentityMiddleware_OversizedHeader_Returns400(t *testing.T) {
	mw := NewIdentityMiddleware()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("X-User-ID", strings.Repeat("a", maxIdentityLength+1))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// TestVoterFromContext_MissingVoter は投票者なしのコンテキストでエラーが返ることを検証する。
func TestVoterFromContext_MissingVoter(t *testing.T) {
	if _, err := VoterFromContext(context.Background()); err == nil {
		t.Error("expected error for context without voter")
	}
}

// TestContextWithVoter_RoundTrip は注入した投票者が取得できることを検証する。
func TestContextWithVoter_RoundTrip(t *testing.T) {
	voter := model.AnonymousVoter("token-1")
	ctx := ContextWithVoter(context.Background(), voter)

	got, err := VoterFromContext(ctx)
	if err != nil {
		t.Fatalf("VoterFromContext failed: %v", err)
	}
	if got.AnonymousID != "token-1" {
		t.Errorf("anonymousID = %q, want %q", got.AnonymousID, "token-1")
	}
}
