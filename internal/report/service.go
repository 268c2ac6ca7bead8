// Package report はアイテムの誤り報告の受付を提供する。
package report

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/jusmemoriza/internal/model"
	"github.com/hitoshi/jusmemoriza/internal/notify"
	"github.com/hitoshi/jusmemoriza/internal/repository"
	"github.com/hitoshi/jusmemoriza/internal/security"
	"github.com/hitoshi/jusmemoriza/internal/validation"
)

// Input は誤り報告の入力。
type Input struct {
	Kind    string `json:"kind" validate:"required,oneof=flashcards quizzes"`
	ItemID  string `json:"item_id" validate:"required,uuid"`
	Message string `json:"message" validate:"required,max=2000"`
}

// Service は誤り報告のサービス。
type Service struct {
	reportRepo repository.ReportRepository
	userRepo   repository.UserRepository
	studyRepo  repository.StudyRepository
	notifier   notify.ReportNotifier
	sanitizer  security.ContentSanitizerService
	logger     *slog.Logger
	now        func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	reportRepo repository.ReportRepository,
	userRepo repository.UserRepository,
	studyRepo repository.StudyRepository,
	notifier notify.ReportNotifier,
	sanitizer security.ContentSanitizerService,
	logger *slog.Logger,
) *Service {
	return &Service{
		reportRepo: reportRepo,
		userRepo:   userRepo,
		studyRepo:  studyRepo,
		notifier:   notifier,
		sanitizer:  sanitizer,
		logger:     logger,
		now:        time.Now,
	}
}

// Create は報告を保存し、その場で管理者へのメール送信を1回試みる。
// 送信に失敗しても報告自体は成功とし、warnings を返す。
// 未送信分はアウトボックスジョブが再送する。
func (s *Service) Create(ctx context.Context, userID string, in Input) (*model.Report, []model.Warning, error) {
	if err := validation.Struct(in); err != nil {
		return nil, nil, err
	}
	message := strings.TrimSpace(s.sanitizer.Text(in.Message))
	if message == "" {
		return nil, nil, model.NewValidationError(model.FieldError{Field: "message", Message: "campo obrigatório"})
	}

	kind := model.Kind(in.Kind)
	exists, err := s.studyRepo.ItemExists(ctx, kind, in.ItemID)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, model.NewItemNotFoundError(in.ItemID)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, model.NewUserNotFoundError()
	}

	rep := &model.Report{
		ID:        uuid.New().String(),
		UserID:    userID,
		UserEmail: user.Email,
		Kind:      kind,
		ItemID:    in.ItemID,
		Message:   message,
	}
	if err := s.reportRepo.Create(ctx, rep); err != nil {
		return nil, nil, err
	}

	if err := s.notifier.NotifyReport(ctx, rep); err != nil {
		s.logger.Warn("報告の即時通知に失敗しました。アウトボックスで再送します",
			slog.String("report_id", rep.ID),
			slog.String("error", err.Error()),
		)
		if markErr := notify.RecordFailure(ctx, s.reportRepo, rep, err, s.now()); markErr != nil {
			s.logger.Error("通知失敗の記録に失敗しました",
				slog.String("report_id", rep.ID),
				slog.String("error", markErr.Error()),
			)
		}
		return rep, []model.Warning{{
			Code:    model.WarnCodeNotifyFailed,
			Message: "Reporte registrado, mas o aviso por e-mail falhou e será reenviado.",
		}}, nil
	}

	at := s.now()
	if err := s.reportRepo.MarkNotified(ctx, rep.ID, at); err != nil {
		s.logger.Error("通知済みの記録に失敗しました",
			slog.String("report_id", rep.ID),
			slog.String("error", err.Error()),
		)
	} else {
		rep.NotifiedAt = &at
	}
	return rep, nil, nil
}
