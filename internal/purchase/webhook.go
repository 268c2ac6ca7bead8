// Package purchase はHotmartの購入Webhook受信と購入履歴の参照を提供する。
package purchase

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/jusmemoriza/internal/metrics"
	"github.com/hitoshi/jusmemoriza/internal/model"
	"github.com/hitoshi/jusmemoriza/internal/repository"
	"github.com/hitoshi/jusmemoriza/internal/validation"
)

// Payload はHotmart Webhook（v2）のうち利用する項目。日時はUnixミリ秒。
type Payload struct {
	ID           string      `json:"id"`
	Event        string      `json:"event" validate:"required"`
	Version      string      `json:"version"`
	CreationDate int64       `json:"creation_date"`
	Data         PayloadData `json:"data"`
}

// PayloadData はWebhookの data 部。
type PayloadData struct {
	Product struct {
		ID   json.Number `json:"id" validate:"required"`
		Name string      `json:"name" validate:"max=500"`
	} `json:"product"`
	Buyer struct {
		Email string `json:"email" validate:"required,email"`
		Name  string `json:"name" validate:"max=500"`
	} `json:"buyer"`
	Purchase struct {
		Transaction  string `json:"transaction" validate:"required,max=100"`
		OrderDate    int64  `json:"order_date"`
		ApprovedDate int64  `json:"approved_date"`
	} `json:"purchase"`
}

// Service は購入Webhookのサービス。
type Service struct {
	purchaseRepo repository.PurchaseRepository
	hottok       []byte
	metrics      metrics.MetricsCollector
	logger       *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// hottokはHotmart管理画面で発行された共有シークレット。
func NewService(
	purchaseRepo repository.PurchaseRepository,
	hottok string,
	m metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Service{
		purchaseRepo: purchaseRepo,
		hottok:       []byte(hottok),
		metrics:      m,
		logger:       logger,
	}
}

// HandleWebhook はWebhookを検証し、(transaction, email) をキーに購入レコードを更新する。
// hottok不一致は INVALID_HOTTOK、スキーマ不一致は INVALID_PAYLOAD、
// 未対応イベントは UNKNOWN_EVENT を返す。
func (s *Service) HandleWebhook(ctx context.Context, hottok string, body []byte) (*model.Purchase, error) {
	if len(s.hottok) == 0 || subtle.ConstantTimeCompare([]byte(hottok), s.hottok) != 1 {
		s.metrics.RecordWebhookEvent("", "forbidden")
		s.logger.Warn("Webhookのhottokが一致しません")
		return nil, model.NewInvalidHottokError()
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		s.metrics.RecordWebhookEvent("", "invalid")
		return nil, model.NewInvalidPayloadError(model.FieldError{Field: "body", Message: "JSON inválido"})
	}
	if err := validation.Struct(p); err != nil {
		s.metrics.RecordWebhookEvent(p.Event, "invalid")
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, model.NewInvalidPayloadError(apiErr.Fields...)
		}
		return nil, err
	}

	event := model.PurchaseEvent(p.Event)
	status, ok := event.StatusFor()
	if !ok {
		s.metrics.RecordWebhookEvent("unknown", "unknown_event")
		return nil, model.NewUnknownEventError(p.Event)
	}

	purchase := &model.Purchase{
		TransactionID: strings.TrimSpace(p.Data.Purchase.Transaction),
		Email:         strings.ToLower(strings.TrimSpace(p.Data.Buyer.Email)),
		BuyerName:     strings.TrimSpace(p.Data.Buyer.Name),
		ProductID:     p.Data.Product.ID.String(),
		ProductName:   strings.TrimSpace(p.Data.Product.Name),
		Status:        status,
		LastEvent:     event,
		PurchasedAt:   purchasedAt(p),
	}
	if event == model.PurchaseEventExpired {
		purchase.ExpiresAt = millis(p.CreationDate)
	}

	if err := s.purchaseRepo.Upsert(ctx, purchase); err != nil {
		s.metrics.RecordWebhookEvent(p.Event, "error")
		return nil, err
	}

	s.metrics.RecordWebhookEvent(p.Event, "ok")
	s.logger.Info("購入Webhookを処理しました",
		slog.String("event", p.Event),
		slog.String("transaction", purchase.TransactionID),
		slog.String("status", string(status)),
	)
	return purchase, nil
}

// ListForEmail はメールアドレスに紐づく購入を新しい順で返す。
func (s *Service) ListForEmail(ctx context.Context, email string) ([]*model.Purchase, error) {
	list, err := s.purchaseRepo.ListByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*model.Purchase{}
	}
	return list, nil
}

func purchasedAt(p Payload) *time.Time {
	if p.Data.Purchase.ApprovedDate > 0 {
		return millis(p.Data.Purchase.ApprovedDate)
	}
	return millis(p.Data.Purchase.OrderDate)
}

func millis(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
