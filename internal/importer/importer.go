// Package importer はCSVファイルからのフラッシュカード・クイズの一括登録を提供する。
//
// 1ファイルを1トランザクションで取り込む。行単位の検証エラーは行番号付きで
// 全て集めてから返し、1件でもあれば何も登録しない。
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/jusmemoriza/internal/metrics"
	"github.com/hitoshi/jusmemoriza/internal/model"
	"github.com/hitoshi/jusmemoriza/internal/repository"
	"github.com/hitoshi/jusmemoriza/internal/security"
)

// maxRowErrors は1回のインポートで報告する行エラーの上限。
const maxRowErrors = 50

var taxonomyColumns = []string{"materia", "lei", "titulo", "capitulo", "artigo"}

// Columns は種別ごとの期待するヘッダー列を返す。
func Columns(kind model.Kind) []string {
	cols := append([]string{}, taxonomyColumns...)
	switch kind {
	case model.KindFlashcards:
		return append(cols, "frente", "verso", "fundamento")
	case model.KindQuizzes:
		return append(cols, "enunciado", "gabarito", "fundamento")
	default:
		return nil
	}
}

// Result はインポート結果。
type Result struct {
	Kind model.Kind `json:"kind"`
	Rows int        `json:"rows"`
}

// row は検証済みの1行。
type row struct {
	line       int
	path       [5]string // materia〜artigo の名前
	front      string
	back       string
	answer     bool
	fundamento string
}

// Importer はCSVインポートを実行する。
type Importer struct {
	repo      repository.ImportRepository
	sanitizer security.ContentSanitizerService
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time
}

// NewImporter はImporterの新しいインスタンスを生成する。
func NewImporter(
	repo repository.ImportRepository,
	sanitizer security.ContentSanitizerService,
	m metrics.MetricsCollector,
	logger *slog.Logger,
) *Importer {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Importer{
		repo:      repo,
		sanitizer: sanitizer,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Import はrのCSVを読み込み、分類を名前で突き合わせながらカードを登録する。
// ヘッダー不一致や行エラーがある場合は IMPORT_FAILED を返し、何も登録しない。
func (im *Importer) Import(ctx context.Context, kind model.Kind, r io.Reader) (*Result, error) {
	start := time.Now()

	want := Columns(kind)
	if want == nil {
		return nil, model.NewInvalidKindError(string(kind))
	}

	rows, rowErrs := im.parse(kind, want, r)
	if len(rowErrs) > 0 {
		im.logger.Warn("CSVインポートの検証に失敗しました",
			slog.String("kind", string(kind)),
			slog.Int("error_count", len(rowErrs)),
		)
		return nil, model.NewImportFailedError(rowErrs)
	}

	createdAt := im.now()
	err := im.repo.InTx(ctx, func(tx repository.ImportTx) error {
		ids := make(map[string]string)
		for _, rw := range rows {
			artigoID, err := ensurePath(ctx, tx, ids, rw.path)
			if err != nil {
				return fmt.Errorf("%d行目の分類登録に失敗: %w", rw.line, err)
			}
			if err := insertRow(ctx, tx, kind, artigoID, rw, createdAt); err != nil {
				return fmt.Errorf("%d行目のカード登録に失敗: %w", rw.line, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	im.metrics.RecordImportRows(string(kind), len(rows))
	im.logger.Info("CSVインポートが完了しました",
		slog.String("kind", string(kind)),
		slog.Int("rows", len(rows)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return &Result{Kind: kind, Rows: len(rows)}, nil
}

// parse はCSV全体を読み込んで検証する。
func (im *Importer) parse(kind model.Kind, want []string, r io.Reader) ([]row, []model.FieldError) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, []model.FieldError{lineError(1, "arquivo vazio")}
	}
	if err != nil {
		return nil, []model.FieldError{lineError(1, "CSV inválido: "+err.Error())}
	}
	if !headerMatches(header, want) {
		return nil, []model.FieldError{lineError(1, "cabeçalho esperado: "+strings.Join(want, ","))}
	}

	var (
		rows []row
		errs []model.FieldError
	)
	for len(errs) < maxRowErrors {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				errs = append(errs, lineError(perr.StartLine, perr.Err.Error()))
				continue
			}
			errs = append(errs, lineError(0, err.Error()))
			break
		}

		line, _ := cr.FieldPos(0)
		if isBlank(record) {
			continue
		}
		if len(record) != len(want) {
			errs = append(errs, lineError(line, fmt.Sprintf("esperadas %d colunas, encontradas %d", len(want), len(record))))
			continue
		}
		rw, msgs := im.parseRow(kind, record)
		if len(msgs) > 0 {
			errs = append(errs, lineError(line, strings.Join(msgs, "; ")))
			continue
		}
		rw.line = line
		rows = append(rows, rw)
	}

	if len(errs) == 0 && len(rows) == 0 {
		errs = append(errs, lineError(2, "nenhuma linha de dados"))
	}
	return rows, errs
}

func (im *Importer) parseRow(kind model.Kind, record []string) (row, []string) {
	var (
		rw   row
		msgs []string
	)
	for i, col := range taxonomyColumns {
		rw.path[i] = im.sanitizer.Text(record[i])
		if rw.path[i] == "" {
			msgs = append(msgs, col+" obrigatório")
		}
	}

	rw.front = im.sanitizer.Text(record[5])
	if rw.front == "" {
		msgs = append(msgs, Columns(kind)[5]+" obrigatório")
	}

	switch kind {
	case model.KindFlashcards:
		rw.back = im.sanitizer.Text(record[6])
		if rw.back == "" {
			msgs = append(msgs, "verso obrigatório")
		}
	case model.KindQuizzes:
		answer, ok := ParseGabarito(record[6])
		if !ok {
			msgs = append(msgs, fmt.Sprintf("gabarito inválido: %q (use C ou E)", strings.TrimSpace(record[6])))
		}
		rw.answer = answer
	}

	fundamento, err := im.sanitizer.Markdown(record[7])
	if err != nil {
		msgs = append(msgs, "fundamento inválido")
	}
	rw.fundamento = fundamento
	return rw, msgs
}

// ParseGabarito はクイズの正解表記を解析する。C/certo/true が正、E/errado/false が誤。
func ParseGabarito(s string) (answer bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "certo", "true", "v", "verdadeiro":
		return true, true
	case "e", "errado", "false", "f", "falso":
		return false, true
	default:
		return false, false
	}
}

// ensurePath は materia〜artigo を順に取得または作成し、artigoのIDを返す。
// 同一ファイル内の同じ経路はidsに記録して再問い合わせしない。
func ensurePath(ctx context.Context, tx repository.ImportTx, ids map[string]string, path [5]string) (string, error) {
	parentID := ""
	for i, level := range model.Levels {
		key := string(level) + "\x00" + parentID + "\x00" + path[i]
		id, ok := ids[key]
		if !ok {
			var err error
			id, err = tx.EnsureNode(ctx, level, parentID, path[i])
			if err != nil {
				return "", err
			}
			ids[key] = id
		}
		parentID = id
	}
	return parentID, nil
}

// insertRow は1行分のカードを登録する。同一ファイルのカードは同じ作成日時を持つ。
func insertRow(ctx context.Context, tx repository.ImportTx, kind model.Kind, artigoID string, rw row, createdAt time.Time) error {
	switch kind {
	case model.KindFlashcards:
		return tx.InsertFlashcard(ctx, &model.Flashcard{
			ID:         uuid.NewString(),
			ArtigoID:   artigoID,
			Front:      rw.front,
			Back:       rw.back,
			Fundamento: rw.fundamento,
			Status:     true,
			CreatedAt:  createdAt,
			UpdatedAt:  createdAt,
		})
	case model.KindQuizzes:
		return tx.InsertQuiz(ctx, &model.Quiz{
			ID:         uuid.NewString(),
			ArtigoID:   artigoID,
			Statement:  rw.front,
			Answer:     rw.answer,
			Fundamento: rw.fundamento,
			Status:     true,
			CreatedAt:  createdAt,
			UpdatedAt:  createdAt,
		})
	default:
		return model.NewInvalidKindError(string(kind))
	}
}

func headerMatches(header, want []string) bool {
	if len(header) != len(want) {
		return false
	}
	for i := range header {
		got := strings.ToLower(strings.TrimSpace(header[i]))
		if i == 0 {
			got = strings.TrimPrefix(got, "\ufeff")
		}
		if got != want[i] {
			return false
		}
	}
	return true
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func lineError(line int, msg string) model.FieldError {
	return model.FieldError{Field: fmt.Sprintf("line:%d", line), Message: msg}
}
