package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/hitoshi/gfrate/internal/model"
)

func newVote(safety, taste int, anonymous bool, createdAt time.Time) *model.Vote {
	v := &model.Vote{
		ID:          "vote-1",
		ProductID:   "product-1",
		Safety:      safety,
		Taste:       taste,
		IsAnonymous: anonymous,
		CreatedAt:   createdAt,
	}
	if anonymous {
		v.AnonymousID = "anon-token-1"
	} else {
		v.UserID = "user-1"
	}
	return v
}

func floatPtr(f float64) *float64 { return &f }

func noDecaySettings() model.Settings {
	s := model.DefaultSettings()
	s.DecayRate = 1.0
	return s
}

// 登録1票(80)と匿名1票(20)の加重平均が (2*80+1*20)/3 = 60 になることを検証
func TestCompute_WeightedAverage_RegisteredCountsDouble(t *testing.T) {
	now := time.Now()
	votes := []*model.Vote{
		newVote(80, 80, false, now),
		newVote(20, 20, true, now),
	}

	agg := Compute(now, noDecaySettings(), votes)

	if math.Abs(agg.AverageSafety-60.0) > 1e-9 {
		t.Errorf("AverageSafety = %g, want 60", agg.AverageSafety)
	}
	if math.Abs(agg.AverageTaste-60.0) > 1e-9 {
		t.Errorf("AverageTaste = %g, want 60", agg.AverageTaste)
	}
}

// 参加数カウンタは重みと無関係な素のカウントであることを検証
func TestCompute_Counters_AreUnweighted(t *testing.T) {
	now := time.Now()
	votes := []*model.Vote{
		newVote(80, 80, false, now.Add(-365*24*time.Hour)),
		newVote(20, 20, true, now),
		newVote(50, 50, true, now),
	}

	agg := Compute(now, model.DefaultSettings(), votes)

	if agg.VoteCount != 3 {
		t.Errorf("VoteCount = %d, want 3", agg.VoteCount)
	}
	if agg.RegisteredVotes != 1 {
		t.Errorf("RegisteredVotes = %d, want 1", agg.RegisteredVotes)
	}
	if agg.AnonymousVotes != 2 {
		t.Errorf("AnonymousVotes = %d, want 2", agg.AnonymousVotes)
	}
	if agg.VoteCount != agg.RegisteredVotes+agg.AnonymousVotes {
		t.Errorf("VoteCount(%d) != RegisteredVotes(%d) + AnonymousVotes(%d)",
			agg.VoteCount, agg.RegisteredVotes, agg.AnonymousVotes)
	}
}

// r<1のとき古い票は新しい票より常に小さい重みを持つことを検証
func TestCompute_Decay_NewerVoteDominates(t *testing.T) {
	settings := model.DefaultSettings() // r=0.995

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	votes := []*model.Vote{
		newVote(100, 100, true, base),                  // 古い票
		newVote(0, 0, true, base.Add(90*24*time.Hour)), // 新しい票
	}

	agg := Compute(base.Add(90*24*time.Hour), settings, votes)

	// 新しい票(0点)寄りなので平均は50未満
	if agg.AverageSafety >= 50 {
		t.Errorf("AverageSafety = %g, want < 50", agg.AverageSafety)
	}
	// 90日差・r=0.995の重み比は 0.995^90 ≈ 0.6370。平均は 100*w/(w+1)
	w := math.Pow(0.995, 90)
	want := 100 * w / (w + 1)
	if math.Abs(agg.AverageSafety-want) > 1e-9 {
		t.Errorf("AverageSafety = %g, want %g", agg.AverageSafety, want)
	}
}

// 指数減衰は無記憶: 2票の重み比は票間の経過日数差のみで決まるため、
// nowが進んでも同一投票集合の加重平均は変化しないことを検証
func TestCompute_Decay_AggregateStableAsNowAdvances(t *testing.T) {
	settings := model.DefaultSettings()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	votes := []*model.Vote{
		newVote(100, 100, true, base),
		newVote(0, 0, true, base.Add(90*24*time.Hour)),
	}

	aggEarly := Compute(base.Add(90*24*time.Hour), settings, votes)
	aggLate := Compute(base.Add(400*24*time.Hour), settings, votes)

	if aggLate.AverageSafety != aggEarly.AverageSafety {
		t.Errorf("aggregate should be stable as now advances: early=%g late=%g",
			aggEarly.AverageSafety, aggLate.AverageSafety)
	}
	if aggLate.AverageTaste != aggEarly.AverageTaste {
		t.Errorf("AverageTaste should be stable: early=%g late=%g",
			aggEarly.AverageTaste, aggLate.AverageTaste)
	}
}

// 同一の (now, settings, votes) に対して常にビット同一の結果を返すことを検証
func TestCompute_Deterministic(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	settings := model.DefaultSettings()
	votes := []*model.Vote{
		newVote(80, 70, false, now.Add(-30*24*time.Hour)),
		newVote(40, 90, true, now.Add(-5*24*time.Hour)),
	}
	votes[0].Price = floatPtr(3.5)

	first := Compute(now, settings, votes)
	second := Compute(now, settings, votes)

	if first.AverageSafety != second.AverageSafety ||
		first.AverageTaste != second.AverageTaste ||
		first.VoteCount != second.VoteCount {
		t.Errorf("Compute is not deterministic: first=%+v second=%+v", first, second)
	}
	if (first.AvgPrice == nil) != (second.AvgPrice == nil) {
		t.Fatal("AvgPrice presence differs between runs")
	}
	if first.AvgPrice != nil && *first.AvgPrice != *second.AvgPrice {
		t.Errorf("AvgPrice = %g and %g, want identical", *first.AvgPrice, *second.AvgPrice)
	}
}

// 未来のcreatedAt（クロックスキュー）は経過日数0として扱われ、重みが1を超えないことを検証
func TestCompute_ClockSkewClamp(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	settings := model.DefaultSettings()

	// 1時間未来の票と現在時刻の票。クランプにより同じ重みになるはず
	future := []*model.Vote{
		newVote(80, 80, false, now.Add(time.Hour)),
		newVote(20, 20, true, now),
	}
	sameInstant := []*model.Vote{
		newVote(80, 80, false, now),
		newVote(20, 20, true, now),
	}

	aggFuture := Compute(now, settings, future)
	aggSame := Compute(now, settings, sameInstant)

	if math.Abs(aggFuture.AverageSafety-aggSame.AverageSafety) > 1e-9 {
		t.Errorf("future-dated vote should weigh the same as a same-instant vote: got %g, want %g",
			aggFuture.AverageSafety, aggSame.AverageSafety)
	}
}

// 減衰無効時は全投票の減衰重みが1になることを検証
func TestCompute_DecayDisabled(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	settings := model.DefaultSettings()
	settings.DecayEnabled = false

	votes := []*model.Vote{
		newVote(80, 80, true, now.Add(-1000*24*time.Hour)), // 非常に古い票
		newVote(20, 20, true, now),
	}

	agg := Compute(now, settings, votes)

	// 減衰なしの匿名同士なので単純平均50
	if math.Abs(agg.AverageSafety-50.0) > 1e-9 {
		t.Errorf("AverageSafety = %g, want 50 (no decay)", agg.AverageSafety)
	}
}

// 空の投票集合では全カウント0・スコア0・AvgPriceがnilであることを検証
func TestCompute_EmptyVoteSet(t *testing.T) {
	now := time.Now()
	agg := Compute(now, model.DefaultSettings(), nil)

	if agg.VoteCount != 0 || agg.RegisteredVotes != 0 || agg.AnonymousVotes != 0 {
		t.Errorf("counts should all be 0: %+v", agg)
	}
	if agg.AverageSafety != 0 || agg.AverageTaste != 0 {
		t.Errorf("scores should reset to 0: %+v", agg)
	}
	if agg.AvgPrice != nil {
		t.Errorf("AvgPrice should be nil, got %g", *agg.AvgPrice)
	}
}

// 平均価格は価格付きの投票のみから計算されることを検証
func TestCompute_AvgPrice_OnlyOverPricedVotes(t *testing.T) {
	now := time.Now()

	priced := newVote(80, 80, true, now)
	priced.Price = floatPtr(3.0)
	unpriced := newVote(20, 20, true, now)

	agg := Compute(now, noDecaySettings(), []*model.Vote{priced, unpriced})

	if agg.AvgPrice == nil {
		t.Fatal("AvgPrice should not be nil")
	}
	if math.Abs(*agg.AvgPrice-3.0) > 1e-9 {
		t.Errorf("AvgPrice = %g, want 3.0", *agg.AvgPrice)
	}
}

// 登録票の価格は匿名票の価格の2倍の重みを持つことを検証
func TestCompute_AvgPrice_Weighted(t *testing.T) {
	now := time.Now()

	reg := newVote(50, 50, false, now)
	reg.Price = floatPtr(4.0)
	anon := newVote(50, 50, true, now)
	anon.Price = floatPtr(1.0)

	agg := Compute(now, noDecaySettings(), []*model.Vote{reg, anon})

	// (2*4.0 + 1*1.0) / 3 = 3.0
	if agg.AvgPrice == nil {
		t.Fatal("AvgPrice should not be nil")
	}
	if math.Abs(*agg.AvgPrice-3.0) > 1e-9 {
		t.Errorf("AvgPrice = %g, want 3.0", *agg.AvgPrice)
	}
}

// 範囲外スコアは集計前にクランプされ、エラーにならないことを検証
func TestCompute_OutOfRangeScores_AreClamped(t *testing.T) {
	now := time.Now()

	v := newVote(150, -10, true, now)
	v.Price = floatPtr(9.9)

	agg := Compute(now, noDecaySettings(), []*model.Vote{v})

	if agg.AverageSafety != float64(model.ScoreMax) {
		t.Errorf("AverageSafety = %g, want %d", agg.AverageSafety, model.ScoreMax)
	}
	if agg.AverageTaste != float64(model.ScoreMin) {
		t.Errorf("AverageTaste = %g, want %d", agg.AverageTaste, model.ScoreMin)
	}
	if agg.AvgPrice == nil || *agg.AvgPrice != model.PriceMax {
		t.Errorf("AvgPrice should be clamped to %g", model.PriceMax)
	}
}

// Computeが呼び出し元のVoteを変更しないこと（範囲外値のクランプはコピー上で行う）を検証
func TestCompute_DoesNotMutateVotes(t *testing.T) {
	now := time.Now()

	v := newVote(150, -10, true, now)
	price := 9.9
	v.Price = &price

	Compute(now, noDecaySettings(), []*model.Vote{v})

	if v.Safety != 150 || v.Taste != -10 {
		t.Errorf("vote scores were mutated: safety=%d taste=%d", v.Safety, v.Taste)
	}
	if v.Price != &price || *v.Price != 9.9 {
		t.Errorf("vote price was mutated: %g", *v.Price)
	}
}

// 不正な減衰率はデフォルト値で計算されることを検証
func TestCompute_InvalidDecayRate_FallsBackToDefault(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	votes := []*model.Vote{newVote(100, 100, true, now.Add(-10*24*time.Hour))}

	invalid := model.DefaultSettings()
	invalid.DecayRate = -1.0
	def := model.DefaultSettings()

	aggInvalid := Compute(now, invalid, votes)
	aggDefault := Compute(now, def, votes)

	if aggInvalid.AverageSafety != aggDefault.AverageSafety {
		t.Errorf("invalid rate should behave like the default: got %g, want %g",
			aggInvalid.AverageSafety, aggDefault.AverageSafety)
	}
}
