// Package vote は投票の受付と匿名投票の移行のドメインロジックを提供する。
package vote

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/gfrate/internal/model"
	"github.com/hitoshi/gfrate/internal/repository"
)

// Recomputer は投票後の単品再集計に必要なインターフェース。
type Recomputer interface {
	// RecomputeOne は指定商品の集計キャッシュを再計算する。
	RecomputeOne(ctx context.Context, productID string) error
}

// Sanitizer はユーザー入力名のサニタイズに必要なインターフェース。
type Sanitizer interface {
	Sanitize(input string) string
}

// Metrics は投票関連のメトリクス記録に必要なインターフェース。
type Metrics interface {
	RecordVoteCast(anonymous bool)
	RecordVotesMigrated(count int)
}

// nopMetrics はメトリクス未設定時の何もしない実装。
type nopMetrics struct{}

func (nopMetrics) RecordVoteCast(anonymous bool) {}
func (nopMetrics) RecordVotesMigrated(count int) {}

// CastVoteInput は投票受付の入力を表す。
type CastVoteInput struct {
	ProductID string
	Voter     model.Voter
	Safety    int
	Taste     int
	Price     *float64
	StoreName string
	Location  *model.GeoPoint
}

// Service は投票受付・移行のサービス層。
type Service struct {
	voteRepo    repository.VoteRepository
	productRepo repository.ProductRepository
	recomputer  Recomputer
	sanitizer   Sanitizer
	logger      *slog.Logger
	metrics     Metrics
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsがnilの場合は記録を行わない。
func NewService(
	voteRepo repository.VoteRepository,
	productRepo repository.ProductRepository,
	recomputer Recomputer,
	sanitizer Sanitizer,
	logger *slog.Logger,
	metrics Metrics,
) *Service {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Service{
		voteRepo:    voteRepo,
		productRepo: productRepo,
		recomputer:  recomputer,
		sanitizer:   sanitizer,
		logger:      logger,
		metrics:     metrics,
	}
}

// CastVote は投票を検証して追記し、対象商品の集計を同期的に再計算する。
//
// スコア範囲外・識別情報不正の投票は保存される前に拒否される。
// 投票の保存後に再集計が失敗した場合、投票自体は有効なので呼び出し元へ
// エラーを返さない（クライアントのリトライによる二重投票を避ける）。
// 集計キャッシュは次の再集計トリガーで収束する。
func (s *Service) CastVote(ctx context.Context, input CastVoteInput) (*model.Vote, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	product, err := s.productRepo.FindByID(ctx, input.ProductID)
	if err != nil {
		return nil, fmt.Errorf("投票対象商品の取得に失敗しました: %w", err)
	}
	if product == nil {
		return nil, model.NewProductNotFoundError(input.ProductID)
	}

	vote := &model.Vote{
		ID:          uuid.NewString(),
		ProductID:   input.ProductID,
		UserID:      input.Voter.UserID,
		AnonymousID: input.Voter.AnonymousID,
		IsAnonymous: input.Voter.IsAnonymous(),
		Safety:      input.Safety,
		Taste:       input.Taste,
		Price:       input.Price,
		StoreName:   s.sanitizer.Sanitize(input.StoreName),
		Location:    input.Location,
		CreatedAt:   time.Now(),
	}

	if err := s.voteRepo.Create(ctx, vote); err != nil {
		return nil, fmt.Errorf("投票の保存に失敗しました: %w", err)
	}

	s.metrics.RecordVoteCast(vote.IsAnonymous)

	if err := s.recomputer.RecomputeOne(ctx, input.ProductID); err != nil {
		s.logger.Error("投票後の再集計に失敗しました",
			slog.String("product_id", input.ProductID),
			slog.String("vote_id", vote.ID),
			slog.String("error", err.Error()),
		)
	}

	return vote, nil
}

// MigrateAnonymousVotes は匿名トークンの全投票を登録ユーザーへ移行する。
//
// 移行後、影響のあった各商品の再集計をトリガーする
// （登録投票は2倍の重みを持つため集計は必ず変化する）。
// 冪等: 移行完了後に同じトークンで再実行しても該当投票は0件で、0を返す。
//
// 既知の競合: 移行の実行中に同じ匿名トークンで新しい投票が挿入された場合、
// その投票は今回の移行に含まれることも含まれないこともある。
// これはエラーではなく、次回の移行または再集計トリガーで収束する。
func (s *Service) MigrateAnonymousVotes(ctx context.Context, userID, anonymousID string) (int, error) {
	if userID == "" {
		return 0, model.NewRegisteredOnlyError()
	}
	if anonymousID == "" {
		return 0, model.NewInvalidIdentityError("匿名トークンが空です")
	}

	migrated, productIDs, err := s.voteRepo.ReassignAnonymous(ctx, userID, anonymousID)
	if err != nil {
		return 0, fmt.Errorf("匿名投票の移行に失敗しました: %w", err)
	}

	if migrated == 0 {
		return 0, nil
	}

	s.metrics.RecordVotesMigrated(migrated)

	// 登録重みへの切り替えを集計キャッシュに反映する。個別の失敗は
	// 移行自体を巻き戻さず、日次再集計での収束に委ねる。
	for _, productID := range productIDs {
		if err := s.recomputer.RecomputeOne(ctx, productID); err != nil {
			s.logger.Error("移行後の再集計に失敗しました",
				slog.String("product_id", productID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("匿名投票を移行しました",
		slog.String("user_id", userID),
		slog.Int("migrated_count", migrated),
		slog.Int("product_count", len(productIDs)),
	)

	return migrated, nil
}

// ListVotesForVoter は投票者自身の投票一覧を返す。
func (s *Service) ListVotesForVoter(ctx context.Context, voter model.Voter) ([]*model.Vote, error) {
	if err := voter.Validate(); err != nil {
		return nil, model.NewInvalidIdentityError(err.Error())
	}
	if voter.IsAnonymous() {
		return s.voteRepo.ListByAnonymousToken(ctx, voter.AnonymousID)
	}
	return s.voteRepo.ListByUser(ctx, voter.UserID)
}

// validate は投票入力を検証する。範囲外の値は保存前にAPIErrorで拒否される。
func (s *Service) validate(input CastVoteInput) error {
	if err := input.Voter.Validate(); err != nil {
		return model.NewInvalidIdentityError(err.Error())
	}
	if input.Safety < model.ScoreMin || input.Safety > model.ScoreMax {
		return model.NewInvalidScoreError("safety", input.Safety)
	}
	if input.Taste < model.ScoreMin || input.Taste > model.ScoreMax {
		return model.NewInvalidScoreError("taste", input.Taste)
	}
	if input.Price != nil && (*input.Price < model.PriceMin || *input.Price > model.PriceMax) {
		return model.NewInvalidPriceError(*input.Price)
	}
	if input.Location != nil {
		lat, lng := input.Location.Latitude, input.Location.Longitude
		if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			return model.NewInvalidGeoPointError()
		}
	}
	return nil
}
