package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// TestRouterIntegration_IdentityWithChiRouter はIdentityミドルウェアが
// chi.Routerで正しく動作することを検証する。
func TestRouterIntegration_IdentityWithChiRouter(t *testing.T) {
	r := chi.NewRouter()
	r.Use(NewIdentityMiddleware())

	r.Get("/api/users/me/votes", func(w http.ResponseWriter, r *http.Request) {
		voter, err := VoterFromContext(r.Context())
		if err != nil {
			http.Error(w, "identity required", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"user_id": voter.UserID})
	})

	// テスト1: 識別情報ありで200
	t.Run("with_user_id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/users/me/votes", nil)
		req.Header.Set("X-User-ID", "user-router-test")
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
		}

		var body map[string]string
		json.NewDecoder(w.Result().Body).Decode(&body)
		if body["user_id"] != "user-router-test" {
			t.Errorf("user_id = %q, want %q", body["user_id"], "user-router-test")
		}
	})

	// テスト2: 識別情報なしはハンドラー側の判定で400
	t.Run("without_identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/users/me/votes", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
		}
	})
}

// TestRouterIntegration_FullMiddlewareChain は
// CORS -> SecurityHeaders -> Identity -> RateLimit のチェーンが
// chi.Routerで正しく動作することを検証する。
func TestRouterIntegration_FullMiddlewareChain(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    2,
		VoteCastRate:    1,
		VoteCastBurst:   1,
		CleanupInterval: 1 * time.Minute,
	})
	defer rl.Stop()

	r := chi.NewRouter()
	r.Use(NewCORSMiddleware("http://localhost:3000"))
	r.Use(NewSecurityHeadersMiddleware())
	r.Use(NewIdentityMiddleware())
	r.Use(rl.GeneralMiddleware())

	r.Get("/api/products", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]string{})
	})

	r.Group(func(r chi.Router) {
		r.Use(rl.VoteCastMiddleware())
		r.Post("/api/products/{productID}/votes", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
	})

	// テスト1: 通常のGETはCORSとセキュリティヘッダー付きで200
	t.Run("GET_products", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.Header.Set("X-Anonymous-Token", "device-full-chain")
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		resp := w.Result()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("CORS origin = %q, want %q", got, "http://localhost:3000")
		}
		if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
			t.Errorf("X-Frame-Options = %q, want %q", got, "DENY")
		}
	})

	// テスト2: OPTIONSプリフライトは204
	t.Run("OPTIONS_preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusNoContent {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
		}
	})

	// テスト3: 投票投稿は専用リミッターも通過して201
	t.Run("POST_vote_with_cast_limiter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/products/p1/votes", nil)
		req.Header.Set("X-User-ID", "user-vote-chain")
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusCreated {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
		}

		// 同一投票者の2回目は投票投稿リミッターで429
		req2 := httptest.NewRequest(http.MethodPost, "/api/products/p1/votes", nil)
		req2.Header.Set("X-User-ID", "user-vote-chain")
		w2 := httptest.NewRecorder()

		r.ServeHTTP(w2, req2)

		if w2.Result().StatusCode != http.StatusTooManyRequests {
			t.Errorf("status = %d, want %d", w2.Result().StatusCode, http.StatusTooManyRequests)
		}
	})
}
