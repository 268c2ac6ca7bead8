package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/hitoshi/jusmemoriza/internal/model"
)

// levelMeta は分類レベルごとのテーブル構成。
// joins は対象テーブル x から materias m までを上向きに辿るJOIN句。
type levelMeta struct {
	table     string
	parentCol string
	joins     []string
	statuses  []string
	leiRef    string
}

var levelMetas = map[model.Level]levelMeta{
	model.LevelMateria: {
		table:    "materias",
		statuses: []string{"x"},
	},
	model.LevelLei: {
		table:     "leis",
		parentCol: "materia_id",
		joins:     []string{"materias m ON m.id = x.materia_id"},
		statuses:  []string{"x", "m"},
		leiRef:    "x.id",
	},
	model.LevelTitulo: {
		table:     "titulos",
		parentCol: "lei_id",
		joins: []string{
			"leis l ON l.id = x.lei_id",
			"materias m ON m.id = l.materia_id",
		},
		statuses: []string{"x", "l", "m"},
		leiRef:   "l.id",
	},
	model.LevelCapitulo: {
		table:     "capitulos",
		parentCol: "titulo_id",
		joins: []string{
			"titulos t ON t.id = x.titulo_id",
			"leis l ON l.id = t.lei_id",
			"materias m ON m.id = l.materia_id",
		},
		statuses: []string{"x", "t", "l", "m"},
		leiRef:   "l.id",
	},
	model.LevelArtigo: {
		table:     "artigos",
		parentCol: "capitulo_id",
		joins: []string{
			"capitulos c ON c.id = x.capitulo_id",
			"titulos t ON t.id = c.titulo_id",
			"leis l ON l.id = t.lei_id",
			"materias m ON m.id = l.materia_id",
		},
		statuses: []string{"x", "c", "t", "l", "m"},
		leiRef:   "l.id",
	},
}

func metaFor(level model.Level) (levelMeta, error) {
	meta, ok := levelMetas[level]
	if !ok {
		return levelMeta{}, fmt.Errorf("unknown taxonomy level: %q", level)
	}
	return meta, nil
}

// parentExpr は親IDを文字列で返すSELECT式。
func (m levelMeta) parentExpr() string {
	if m.parentCol == "" {
		return "''"
	}
	return "x." + m.parentCol + "::text"
}

// attrColumns はレベル固有の付帯属性（color / body）。
func attrColumns(level model.Level) (color, body string) {
	color, body = "''", "''"
	switch level {
	case model.LevelMateria:
		color = "x.color"
	case model.LevelArtigo:
		body = "x.body"
	}
	return color, body
}

// PostgresTaxonomyRepo はPostgreSQLを使用した分類リポジトリ。
type PostgresTaxonomyRepo struct {
	db *sql.DB
}

// NewPostgresTaxonomyRepo はPostgresTaxonomyRepoを生成する。
func NewPostgresTaxonomyRepo(db *sql.DB) *PostgresTaxonomyRepo {
	return &PostgresTaxonomyRepo{db: db}
}

// FindByID は指定レベル・IDのノードを取得する。見つからない場合はnilを返す。
func (r *PostgresTaxonomyRepo) FindByID(ctx context.Context, level model.Level, id string) (*model.TaxonomyNode, error) {
	meta, err := metaFor(level)
	if err != nil {
		return nil, err
	}
	color, body := attrColumns(level)

	query, args, err := psql.
		Select("x.id", meta.parentExpr(), "x.name", color, body, "x.status", "x.created_at", "x.updated_at").
		From(meta.table + " x").
		Where(sq.Eq{"x.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("分類クエリの組み立てに失敗しました: %w", err)
	}

	node := &model.TaxonomyNode{Level: level}
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&node.ID, &node.ParentID, &node.Name, &node.Color, &node.Body,
		&node.Status, &node.CreatedAt, &node.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%sの取得に失敗しました: %w", level, err)
	}
	return node, nil
}

// Create はノードを作成する。同一親で名前が重複する場合はErrDuplicateを返す。
func (r *PostgresTaxonomyRepo) Create(ctx context.Context, node *model.TaxonomyNode) error {
	meta, err := metaFor(node.Level)
	if err != nil {
		return err
	}

	columns := []string{"id", "name", "status", "created_at", "updated_at"}
	values := []interface{}{node.ID, node.Name, node.Status, node.CreatedAt, node.UpdatedAt}
	if meta.parentCol != "" {
		columns = append(columns, meta.parentCol)
		values = append(values, node.ParentID)
	}
	switch node.Level {
	case model.LevelMateria:
		columns = append(columns, "color")
		values = append(values, node.Color)
	case model.LevelArtigo:
		columns = append(columns, "body")
		values = append(values, node.Body)
	}

	query, args, err := psql.Insert(meta.table).Columns(columns...).Values(values...).ToSql()
	if err != nil {
		return fmt.Errorf("分類クエリの組み立てに失敗しました: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s %q: %w", node.Level, node.Name, ErrDuplicate)
		}
		return fmt.Errorf("%sの作成に失敗しました: %w", node.Level, err)
	}
	return nil
}

// Update は名前・親・付帯属性を更新する。対象がない場合はfalseを返す。
func (r *PostgresTaxonomyRepo) Update(ctx context.Context, node *model.TaxonomyNode) (bool, error) {
	meta, err := metaFor(node.Level)
	if err != nil {
		return false, err
	}

	b := psql.Update(meta.table).
		Set("name", node.Name).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": node.ID})
	if meta.parentCol != "" {
		b = b.Set(meta.parentCol, node.ParentID)
	}
	switch node.Level {
	case model.LevelMateria:
		b = b.Set("color", node.Color)
	case model.LevelArtigo:
		b = b.Set("body", node.Body)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return false, fmt.Errorf("分類クエリの組み立てに失敗しました: %w", err)
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return false, fmt.Errorf("%s %q: %w", node.Level, node.Name, ErrDuplicate)
		}
		return false, fmt.Errorf("%sの更新に失敗しました: %w", node.Level, err)
	}
	return rowsAffected(result)
}

// SetStatus は有効/無効を切り替える。分類は削除せず無効化のみ行う。
func (r *PostgresTaxonomyRepo) SetStatus(ctx context.Context, level model.Level, id string, status bool) (bool, error) {
	meta, err := metaFor(level)
	if err != nil {
		return false, err
	}
	result, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET status = $1, updated_at = now() WHERE id = $2`, meta.table),
		status, id,
	)
	if err != nil {
		return false, fmt.Errorf("%sの状態更新に失敗しました: %w", level, err)
	}
	return rowsAffected(result)
}

// ListOptions はコンボ配下の有効なノードを選択肢として名前順で返す。
// 祖先がすべて有効なノードのみを含める。
func (r *PostgresTaxonomyRepo) ListOptions(ctx context.Context, level model.Level, comboID string) ([]model.FilterOption, error) {
	query, args, err := buildOptionsQuery(level, comboID)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%sの選択肢取得に失敗しました: %w", level, err)
	}
	defer rows.Close()

	options := []model.FilterOption{}
	for rows.Next() {
		var opt model.FilterOption
		if err := rows.Scan(&opt.ID, &opt.Name, &opt.ParentID); err != nil {
			return nil, fmt.Errorf("%sの選択肢スキャンに失敗しました: %w", level, err)
		}
		options = append(options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%sの選択肢イテレーションに失敗しました: %w", level, err)
	}
	return options, nil
}

func buildOptionsQuery(level model.Level, comboID string) (string, []interface{}, error) {
	meta, err := metaFor(level)
	if err != nil {
		return "", nil, err
	}

	b := psql.Select("x.id", "x.name", meta.parentExpr()).From(meta.table + " x")
	for _, j := range meta.joins {
		b = b.Join(j)
	}
	for _, alias := range meta.statuses {
		b = b.Where(alias + ".status")
	}
	if comboID != "" {
		if meta.leiRef != "" {
			b = b.Where(sq.Expr(
				"EXISTS (SELECT 1 FROM combo_leis cl WHERE cl.lei_id = "+meta.leiRef+" AND cl.combo_id = ?)", comboID))
		} else {
			b = b.Where(sq.Expr(
				"EXISTS (SELECT 1 FROM leis l JOIN combo_leis cl ON cl.lei_id = l.id WHERE l.materia_id = x.id AND l.status AND cl.combo_id = ?)", comboID))
		}
	}

	query, args, err := b.OrderBy("x.name", "x.id").ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("選択肢クエリの組み立てに失敗しました: %w", err)
	}
	return query, args, nil
}

// compile-time interface check
var _ TaxonomyRepository = (*PostgresTaxonomyRepo)(nil)
