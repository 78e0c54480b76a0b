// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/gfrate/internal/model"
)

const (
	// userIDHeaderName は認証済みユーザーIDを受け取るヘッダー名。
	// 認証基盤（APIゲートウェイ）で検証済みのIDが渡される前提。
	userIDHeaderName = "X-User-ID"

	// anonymousTokenHeaderName は匿名投票者のデバイストークンを受け取るヘッダー名。
	anonymousTokenHeaderName = "X-Anonymous-Token"

	// maxIdentityLength は識別子として受け付ける最大長。
	maxIdentityLength = 128
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// voterContextKey はリクエストコンテキストに投票者を格納するためのキー。
var voterContextKey = contextKey("voter")

// NewIdentityMiddleware はリクエストヘッダーから投票者の識別情報を読み取り、
// リクエストコンテキストに注入するミドルウェアを返す。
// X-User-IDがあれば登録ユーザー、なければX-Anonymous-Tokenで匿名投票者とする。
// どちらのヘッダーもないリクエストは識別情報なしで通過させる
// （識別が必須かどうかはハンドラー側で判定する）。
func NewIdentityMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get(userIDHeaderName)
			anonToken := r.Header.Get(anonymousTokenHeaderName)

			if len(userID) > maxIdentityLength || len(anonToken) > maxIdentityLength {
				http.Error(w, "invalid identity header", http.StatusBadRequest)
				return
			}

			var voter model.Voter
			switch {
			case userID != "":
				// 両方のヘッダーがある場合は登録ユーザーを優先する
				voter = model.RegisteredVoter(userID)
			case anonToken != "":
				voter = model.AnonymousVoter(anonToken)
			default:
				next.ServeHTTP(w, r)
				return
			}

			ctx := ContextWithVoter(r.Context(), voter)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// VoterFromContext はリクエストコンテキストから投票者を取得する。
// 識別情報なしのリクエストではエラーを返す。
func VoterFromContext(ctx context.Context) (model.Voter, error) {
	voter, ok := ctx.Value(voterContextKey).(model.Voter)
	if !ok {
		return model.Voter{}, fmt.Errorf("voter not found in context")
	}
	return voter, nil
}

// ContextWithVoter はコンテキストに投票者を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithVoter(ctx context.Context, voter model.Voter) context.Context {
	return context.WithValue(ctx, voterContextKey, voter)
}
