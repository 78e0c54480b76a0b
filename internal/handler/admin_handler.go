package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/gfrate/internal/aggregate"
)

// RecomputeRunner は全商品の集計再計算を実行するインターフェース。
type RecomputeRunner interface {
	RecomputeAll(ctx context.Context) (aggregate.Result, error)
}

// SnapshotRunner は価格スナップショットの取得を実行するインターフェース。
type SnapshotRunner interface {
	Run(ctx context.Context) (int, error)
}

// AdminHandler は運用オペレーション（手動再集計・手動スナップショット）のHTTPハンドラー。
// 定期実行と同じ処理をオンデマンドで起動するために使う。
type AdminHandler struct {
	recomputer  RecomputeRunner
	snapshotter SnapshotRunner
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(recomputer RecomputeRunner, snapshotter SnapshotRunner) *AdminHandler {
	return &AdminHandler{
		recomputer:  recomputer,
		snapshotter: snapshotter,
	}
}

// recomputeResponse は全件再集計のAPIレスポンス。
type recomputeResponse struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// snapshotRunResponse は手動スナップショットのAPIレスポンス。
type snapshotRunResponse struct {
	Written int `json:"snapshots_written"`
}

// RecomputeAll は全商品の再集計を実行する。
// POST /api/admin/recompute
func (h *AdminHandler) RecomputeAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.recomputer.RecomputeAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recomputeResponse{
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
	})
}

// CaptureSnapshots は価格スナップショットの取得を実行する。
// POST /api/admin/snapshots
func (h *AdminHandler) CaptureSnapshots(w http.ResponseWriter, r *http.Request) {
	written, err := h.snapshotter.Run(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshotRunResponse{Written: written})
}
