package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/jusmemoriza/internal/model"
)

// PostgresReportRepo はPostgreSQLを使用した誤り報告リポジトリ。
// reportsテーブルはメール通知のアウトボックスを兼ねる。
type PostgresReportRepo struct {
	db *sql.DB
}

// NewPostgresReportRepo はPostgresReportRepoを生成する。
func NewPostgresReportRepo(db *sql.DB) *PostgresReportRepo {
	return &PostgresReportRepo{db: db}
}

// Create は報告を保存する。CreatedAt と NextNotifyAt はDBの時刻で埋める。
func (r *PostgresReportRepo) Create(ctx context.Context, report *model.Report) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO reports (id, user_id, item_kind, item_id, message)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, next_notify_at`,
		report.ID, report.UserID, string(report.Kind), report.ItemID, report.Message,
	).Scan(&report.CreatedAt, &report.NextNotifyAt)
	if err != nil {
		return fmt.Errorf("報告の保存に失敗しました: %w", err)
	}
	return nil
}

// ListPendingNotify は未通知かつ next_notify_at <= now の報告を古い順に返す。
// ワーカーは単一プロセスで動かすためロックは取らない。
func (r *PostgresReportRepo) ListPendingNotify(ctx context.Context, now time.Time, limit int) ([]*model.Report, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.id, r.user_id, u.email, r.item_kind, r.item_id, r.message,
		        r.notify_attempts, r.next_notify_at, r.last_error, r.created_at
		 FROM reports r
		 JOIN users u ON u.id = r.user_id
		 WHERE r.notified_at IS NULL AND r.next_notify_at <= $1
		 ORDER BY r.next_notify_at ASC, r.created_at ASC
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("未通知報告の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var reports []*model.Report
	for rows.Next() {
		rep := &model.Report{}
		var kind string
		var lastErr sql.NullString
		if err := rows.Scan(
			&rep.ID, &rep.UserID, &rep.UserEmail, &kind, &rep.ItemID, &rep.Message,
			&rep.NotifyAttempts, &rep.NextNotifyAt, &lastErr, &rep.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("報告のスキャンに失敗しました: %w", err)
		}
		rep.Kind = model.Kind(kind)
		rep.LastError = nullStringValue(lastErr)
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("未通知報告のイテレーションに失敗しました: %w", err)
	}
	return reports, nil
}

// MarkNotified は通知済みにする。
func (r *PostgresReportRepo) MarkNotified(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE reports SET notified_at = $1, last_error = NULL WHERE id = $2`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("通知済みの更新に失敗しました: %w", err)
	}
	return nil
}

// MarkNotifyFailed は失敗回数・次回試行時刻・エラー内容を記録する。
func (r *PostgresReportRepo) MarkNotifyFailed(ctx context.Context, id string, attempts int, next time.Time, lastErr string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE reports SET notify_attempts = $1, next_notify_at = $2, last_error = $3 WHERE id = $4`,
		attempts, next, nullString(lastErr), id,
	)
	if err != nil {
		return fmt.Errorf("通知失敗の記録に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ReportRepository = (*PostgresReportRepo)(nil)
