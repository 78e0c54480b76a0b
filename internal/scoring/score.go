// Package scoring は投票集合から時間減衰付き加重集計を計算する純粋関数を提供する。
//
// 計算はComputeに渡された (now, settings, votes) のみに依存し、
// 隠れた状態や副作用を持たない。これにより投票時の単品再集計と
// 日次バッチの全件再集計が同一のロジックを共有し、独立にテストできる。
//
// 指数減衰 r^ageDays は無記憶であり、2票の重み比 r^(d1-d2) は
// 票間の作成日時差のみで決まる。したがって新しい票が入らない限り、
// nowが進んでも加重平均は変化しない（日次再集計は新規投票・設定変更を
// 反映するためのもので、静止した商品のスコアを動かすものではない）。
package scoring

import (
	"math"
	"time"

	"github.com/hitoshi/gfrate/internal/model"
)

// 投票者種別ごとの重み。登録ユーザーの投票は匿名投票の2倍の影響力を持つ。
const (
	registeredWeight = 2.0
	anonymousWeight  = 1.0
)

// hoursPerDay は経過日数計算の除数。
const hoursPerDay = 24.0

// Compute は1商品の全投票から集計を計算する。
//
// 各投票の重みは 減衰重み × 投票者重み で決まる。
// 減衰重みは r^ageDays（rは1日あたりの残存率）。減衰が無効の場合は常に1。
// createdAtがnowより未来の投票（クロックスキュー）は経過日数0として扱い、
// 1を超える重みを持たせない。
//
// VoteCount / RegisteredVotes / AnonymousVotes は重みと無関係な参加数カウンタ。
// 投票が0件の場合、スコアは0、AvgPriceはnilにリセットされる
// （重み合計が0の商品はUI上「未評価」として扱われる）。
func Compute(now time.Time, settings model.Settings, votes []*model.Vote) model.Aggregate {
	var agg model.Aggregate

	var (
		weightSum  float64
		safetySum  float64
		tasteSum   float64
		priceW     float64
		priceSum   float64
		havePrice  bool
	)

	for _, v := range votes {
		// 範囲外スコアは書き込み時に弾かれるが、読み取り時の防御として集計前に収める。
		// 呼び出し元のVoteは変更しない
		cv := v.Clamped()

		w := decayWeight(now, cv.CreatedAt, settings) * identityWeight(v)

		weightSum += w
		safetySum += w * float64(cv.Safety)
		tasteSum += w * float64(cv.Taste)

		if cv.Price != nil {
			priceW += w
			priceSum += w * (*cv.Price)
			havePrice = true
		}

		agg.VoteCount++
		if v.IsAnonymous {
			agg.AnonymousVotes++
		} else {
			agg.RegisteredVotes++
		}
	}

	if weightSum > 0 {
		agg.AverageSafety = safetySum / weightSum
		agg.AverageTaste = tasteSum / weightSum
	}

	if havePrice && priceW > 0 {
		avg := priceSum / priceW
		agg.AvgPrice = &avg
	}

	return agg
}

// decayWeight は投票1件の時間減衰重みを返す。
// 経過日数は負にならないようクランプされるため、重みは常に (0,1] に収まる。
func decayWeight(now, createdAt time.Time, settings model.Settings) float64 {
	if !settings.DecayEnabled {
		return 1.0
	}

	rate := settings.DecayRate
	if rate <= 0 || rate > 1 {
		rate = model.DefaultDecayRate
	}

	ageDays := now.Sub(createdAt).Hours() / hoursPerDay
	if ageDays < 0 {
		ageDays = 0
	}

	return math.Pow(rate, ageDays)
}

// identityWeight は投票者種別による重みを返す。
func identityWeight(v *model.Vote) float64 {
	if v.IsAnonymous {
		return anonymousWeight
	}
	return registeredWeight
}
