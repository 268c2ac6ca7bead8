package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/jusmemoriza/internal/metrics"
	"github.com/hitoshi/jusmemoriza/internal/model"
)

// ErrNoRecipients は通知先の管理者が設定されていないことを表す。
var ErrNoRecipients = errors.New("通知先の管理者が設定されていません")

const (
	// initialBackoff は再送の初回遅延（30分）。
	initialBackoff = 30 * time.Minute
	// maxBackoff は再送の最大遅延（12時間）。
	maxBackoff = 12 * time.Hour
)

// CalculateBackoff は失敗回数に基づいて次回再送までの遅延を計算する。
// 1回目の失敗で30分、以降2倍ずつ増加し、最大12時間。
func CalculateBackoff(attempts int) time.Duration {
	delay := initialBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// Notifier は誤り報告を管理者へメールで通知する。
type Notifier struct {
	mailer  Mailer
	from    string
	admins  []string
	metrics metrics.MetricsCollector
}

// NewNotifier はNotifierの新しいインスタンスを生成する。
func NewNotifier(mailer Mailer, from string, admins []string, m metrics.MetricsCollector) *Notifier {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Notifier{
		mailer:  mailer,
		from:    from,
		admins:  admins,
		metrics: m,
	}
}

// NotifyReport は報告1件分のメールを送信する。
func (n *Notifier) NotifyReport(ctx context.Context, r *model.Report) error {
	if len(n.admins) == 0 {
		n.metrics.RecordMail("skipped")
		return ErrNoRecipients
	}
	if err := n.mailer.Send(ctx, ReportMessage(n.from, n.admins, r)); err != nil {
		n.metrics.RecordMail("failed")
		return err
	}
	n.metrics.RecordMail("sent")
	return nil
}

// ReportMessage は報告通知メールを組み立てる。本文は利用者向けと同じくポルトガル語。
func ReportMessage(from string, to []string, r *model.Report) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Um usuário reportou um problema.\n\n")
	fmt.Fprintf(&b, "Tipo: %s\n", r.Kind)
	fmt.Fprintf(&b, "Item: %s\n", r.ItemID)
	if r.UserEmail != "" {
		fmt.Fprintf(&b, "Usuário: %s\n", r.UserEmail)
	}
	fmt.Fprintf(&b, "Data: %s\n\n", r.CreatedAt.UTC().Format(time.RFC3339))
	b.WriteString(r.Message)
	b.WriteString("\n")

	return Message{
		From:    from,
		To:      to,
		Subject: fmt.Sprintf("[JusMemoriza] Problema reportado em %s %s", r.Kind, shortID(r.ItemID)),
		Text:    b.String(),
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
