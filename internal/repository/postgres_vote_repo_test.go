package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/gfrate/internal/model"
)

// PostgresVoteRepoはVoteRepositoryインターフェースを満たすことを検証
func TestPostgresVoteRepo_ImplementsInterface(t *testing.T) {
	var _ VoteRepository = (*PostgresVoteRepo)(nil)
}

// NewPostgresVoteRepoが正しく初期化されることを検証
func TestNewPostgresVoteRepo_Initializes(t *testing.T) {
	repo := NewPostgresVoteRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// Voteモデルの識別情報が正しく構築されることを検証
func TestVoteModel_IdentityFields(t *testing.T) {
	now := time.Now()

	anon := &model.Vote{
		ID:          "vote-1",
		ProductID:   "product-1",
		AnonymousID: "anon-token",
		IsAnonymous: true,
		Safety:      80,
		Taste:       70,
		CreatedAt:   now,
	}
	if !anon.Voter().IsAnonymous() {
		t.Error("anonymous vote should report an anonymous voter")
	}
	if err := anon.Voter().Validate(); err != nil {
		t.Errorf("anonymous voter should be valid: %v", err)
	}

	registered := &model.Vote{
		ID:          "vote-2",
		ProductID:   "product-1",
		UserID:      "user-1",
		IsAnonymous: false,
		Safety:      90,
		Taste:       60,
		CreatedAt:   now,
	}
	if registered.Voter().IsAnonymous() {
		t.Error("registered vote should report a registered voter")
	}
}

// Voteの任意フィールドがnil許容であることを検証
func TestVoteModel_OptionalFields(t *testing.T) {
	vote := &model.Vote{
		ID:          "vote-3",
		ProductID:   "product-1",
		AnonymousID: "anon-token",
		IsAnonymous: true,
	}

	if vote.Price != nil {
		t.Error("price should be nil by default")
	}
	if vote.Location != nil {
		t.Error("location should be nil by default")
	}
	if vote.StoreName != "" {
		t.Error("store name should be empty by default")
	}
}
