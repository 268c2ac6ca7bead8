// Package media はコンボのカバー画像の取得・保存・配信を提供する。
package media

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/jusmemoriza/internal/model"
	"github.com/hitoshi/jusmemoriza/internal/repository"
	"github.com/hitoshi/jusmemoriza/internal/security"
	"github.com/hitoshi/jusmemoriza/internal/validation"
)

// allowedImageTypes は保存を許可する画像形式。
// SVGはスクリプトを含み得るため許可しない。
var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// Service は画像取得・保存のサービス。
type Service struct {
	comboRepo repository.ComboRepository
	guard     security.SSRFGuardService
	timeout   time.Duration
	maxSize   int64
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	comboRepo repository.ComboRepository,
	guard security.SSRFGuardService,
	timeout time.Duration,
	maxSize int64,
	logger *slog.Logger,
) *Service {
	return &Service{
		comboRepo: comboRepo,
		guard:     guard,
		timeout:   timeout,
		maxSize:   maxSize,
		logger:    logger,
	}
}

// SetComboImageFromURL は画像URLから画像を取得し、コンボのカバー画像を置き換える。
func (s *Service) SetComboImageFromURL(ctx context.Context, comboID, imageURL string) error {
	if validation.Var("id", comboID, "uuid") != nil {
		return model.NewComboNotFoundError(comboID)
	}
	combo, err := s.comboRepo.FindByID(ctx, comboID)
	if err != nil {
		return err
	}
	if combo == nil {
		return model.NewComboNotFoundError(comboID)
	}

	data, mime, err := s.Fetch(ctx, imageURL)
	if err != nil {
		return err
	}

	ok, err := s.comboRepo.SetImage(ctx, comboID, data, mime)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewComboNotFoundError(comboID)
	}
	s.logger.Info("コンボ画像を更新しました",
		slog.String("combo_id", comboID),
		slog.String("mime", mime),
		slog.Int("size", len(data)),
	)
	return nil
}

// ComboImage はコンボのカバー画像を返す。未設定の場合はIMAGE_NOT_FOUND。
func (s *Service) ComboImage(ctx context.Context, comboID string) ([]byte, string, error) {
	if validation.Var("id", comboID, "uuid") != nil {
		return nil, "", model.NewImageNotFoundError()
	}
	data, mime, err := s.comboRepo.FindImage(ctx, comboID)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", model.NewImageNotFoundError()
	}
	return data, mime, nil
}

// Fetch はSSRF防止付きクライアントで画像を取得する。
// 失敗時は IMAGE_FETCH_FAILED を返す。形式は本文の先頭バイトから判定する。
func (s *Service) Fetch(ctx context.Context, imageURL string) ([]byte, string, error) {
	if err := s.guard.ValidateURL(imageURL); err != nil {
		s.logger.Warn("画像取得: URL検証で拒否", slog.String("url", imageURL), slog.String("error", err.Error()))
		return nil, "", model.NewImageFetchFailedError("URLが許可されていません")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", model.NewImageFetchFailedError("URLが不正です")
	}
	req.Header.Set("User-Agent", "JusMemoriza/1.0")
	req.Header.Set("Accept", "image/png,image/jpeg,image/gif,image/webp")

	resp, err := s.guard.NewSafeClient(s.timeout).Do(req)
	if err != nil {
		s.logger.Warn("画像取得: HTTPリクエスト失敗", slog.String("url", imageURL), slog.String("error", err.Error()))
		return nil, "", model.NewImageFetchFailedError("接続できません")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("画像取得: HTTPステータス異常", slog.String("url", imageURL), slog.Int("status", resp.StatusCode))
		return nil, "", model.NewImageFetchFailedError("HTTP " + http.StatusText(resp.StatusCode))
	}

	body, err := security.ReadLimited(resp.Body, s.maxSize)
	if errors.Is(err, security.ErrResponseTooLarge) {
		return nil, "", model.NewImageFetchFailedError("サイズが上限を超えています")
	}
	if err != nil {
		return nil, "", model.NewImageFetchFailedError("読み込みに失敗しました")
	}

	mime := detectImageType(body)
	if mime == "" {
		s.logger.Warn("画像取得: 画像以外の内容",
			slog.String("url", imageURL),
			slog.String("content_type", resp.Header.Get("Content-Type")),
		)
		return nil, "", model.NewImageFetchFailedError("対応していない画像形式です")
	}
	return body, mime, nil
}

// detectImageType は本文から画像形式を判定し、許可形式でなければ空文字を返す。
func detectImageType(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	mime := http.DetectContentType(body)
	mime = strings.TrimSpace(strings.SplitN(mime, ";", 2)[0])
	if !allowedImageTypes[mime] {
		return ""
	}
	return mime
}
