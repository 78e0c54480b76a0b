package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/gfrate/internal/middleware"
	"github.com/hitoshi/gfrate/internal/model"
	"github.com/hitoshi/gfrate/internal/vote"
)

// VoteServiceInterface は投票ハンドラーが必要とするサービスインターフェース。
type VoteServiceInterface interface {
	// CastVote は投票を検証して保存し、対象商品の集計を再計算する。
	CastVote(ctx context.Context, input vote.CastVoteInput) (*model.Vote, error)
	// MigrateAnonymousVotes は匿名投票を登録ユーザーに引き継ぐ。移行件数を返す。
	MigrateAnonymousVotes(ctx context.Context, userID, anonymousID string) (int, error)
	// ListVotesForVoter は投票者の投票履歴を返す。
	ListVotesForVoter(ctx context.Context, voter model.Voter) ([]*model.Vote, error)
}

// VoteHandler は投票のHTTPハンドラー。
type VoteHandler struct {
	service VoteServiceInterface
}

// NewVoteHandler はVoteHandlerを生成する。
func NewVoteHandler(service VoteServiceInterface) *VoteHandler {
	return &VoteHandler{service: service}
}

// castVoteRequest は投票投稿リクエストのボディ。
type castVoteRequest struct {
	Safety    int      `json:"safety"`
	Taste     int      `json:"taste"`
	Price     *float64 `json:"price"`
	StoreName string   `json:"store_name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// migrateVotesRequest は匿名投票引き継ぎリクエストのボディ。
type migrateVotesRequest struct {
	AnonymousID string `json:"anonymous_id"`
}

// migrateVotesResponse は匿名投票引き継ぎのAPIレスポンス。
type migrateVotesResponse struct {
	MigratedCount int `json:"migrated_count"`
}

// voteResponse は投票のAPIレスポンス。
type voteResponse struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	IsAnonymous bool      `json:"is_anonymous"`
	Safety      int       `json:"safety"`
	Taste       int       `json:"taste"`
	Price       *float64  `json:"price"`
	StoreName   string    `json:"store_name,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CastVote は投票の投稿を処理する。
// POST /api/products/:id/votes
func (h *VoteHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	voter, err := middleware.VoterFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidIdentityError("X-User-IDまたはX-Anonymous-Tokenヘッダーが必要です"))
		return
	}

	var req castVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	// 緯度・経度は対でのみ受け付ける。片方だけの指定はサービス層ではなく
	// ここで弾く（JSONの欠落とゼロ値を区別できるのはハンドラーだけのため）。
	var location *model.GeoPoint
	if req.Latitude != nil || req.Longitude != nil {
		if req.Latitude == nil || req.Longitude == nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidGeoPointError())
			return
		}
		location = &model.GeoPoint{
			Latitude:  *req.Latitude,
			Longitude: *req.Longitude,
		}
	}

	input := vote.CastVoteInput{
		ProductID: chi.URLParam(r, "id"),
		Voter:     voter,
		Safety:    req.Safety,
		Taste:     req.Taste,
		Price:     req.Price,
		StoreName: req.StoreName,
		Location:  location,
	}

	v, err := h.service.CastVote(r.Context(), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toVoteResponse(v))
}

// MigrateVotes は匿名投票の引き継ぎを処理する。
// POST /api/votes/migrate
func (h *VoteHandler) MigrateVotes(w http.ResponseWriter, r *http.Request) {
	voter, err := middleware.VoterFromContext(r.Context())
	if err != nil || voter.IsAnonymous() {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewRegisteredOnlyError())
		return
	}

	var req migrateVotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if req.AnonymousID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidIdentityError("引き継ぎ元の匿名トークンが空です"))
		return
	}

	count, err := h.service.MigrateAnonymousVotes(r.Context(), voter.UserID, req.AnonymousID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(migrateVotesResponse{MigratedCount: count})
}

// ListMyVotes は投票者自身の投票履歴を取得する。
// GET /api/users/me/votes
func (h *VoteHandler) ListMyVotes(w http.ResponseWriter, r *http.Request) {
	voter, err := middleware.VoterFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidIdentityError("X-User-IDまたはX-Anonymous-Tokenヘッダーが必要です"))
		return
	}

	votes, err := h.service.ListVotesForVoter(r.Context(), voter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]voteResponse, len(votes))
	for i, v := range votes {
		results[i] = toVoteResponse(v)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// toVoteResponse はドメインのVoteをAPIレスポンス型に変換する。
// 投票者の識別子そのものはレスポンスに含めない。
func toVoteResponse(v *model.Vote) voteResponse {
	resp := voteResponse{
		ID:          v.ID,
		ProductID:   v.ProductID,
		IsAnonymous: v.IsAnonymous,
		Safety:      v.Safety,
		Taste:       v.Taste,
		Price:       v.Price,
		StoreName:   v.StoreName,
		CreatedAt:   v.CreatedAt,
	}
	if v.Location != nil {
		lat := v.Location.Latitude
		lng := v.Location.Longitude
		resp.Latitude = &lat
		resp.Longitude = &lng
	}
	return resp
}
