package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/jusmemoriza/internal/model"
	"github.com/hitoshi/jusmemoriza/internal/report"
)

// ReportServiceInterface は誤り報告に必要なサービスインターフェース。
type ReportServiceInterface interface {
	Create(ctx context.Context, userID string, in report.Input) (*model.Report, []model.Warning, error)
}

// ReportHandler は誤り報告のHTTPハンドラー。
type ReportHandler struct {
	service ReportServiceInterface
}

// NewReportHandler はReportHandlerを生成する。
func NewReportHandler(service ReportServiceInterface) *ReportHandler {
	return &ReportHandler{service: service}
}

// reportResponse は報告作成のレスポンス。
// 管理者への通知に失敗した場合も作成は成功扱いとし、warnings で知らせる。
type reportResponse struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	ItemID    string          `json:"item_id"`
	Notified  bool            `json:"notified"`
	CreatedAt time.Time       `json:"created_at"`
	Warnings  []model.Warning `json:"warnings,omitempty"`
}

// Create は誤り報告を保存し、管理者へ通知する。
// POST /api/reports
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	v, ok := currentViewer(w, r)
	if !ok {
		return
	}

	var in report.Input
	if !decodeJSONBody(w, r, &in) {
		return
	}

	rep, warnings, err := h.service.Create(r.Context(), v.UserID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, reportResponse{
		ID:        rep.ID,
		Kind:      string(rep.Kind),
		ItemID:    rep.ItemID,
		Notified:  rep.NotifiedAt != nil,
		CreatedAt: rep.CreatedAt,
		Warnings:  warnings,
	})
}
