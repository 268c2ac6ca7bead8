package repository

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/hitoshi/jusmemoriza/internal/model"
)

// 学習クエリは次の形を共通の土台とする。
//
//	WITH latest AS (各アイテムの最新回答を DISTINCT ON で1件に絞る)
//	SELECT ... FROM <items> i JOIN artigos → capitulos → titulos → leis → materias
//	LEFT JOIN latest / favorites
//	WHERE 状態チェーン AND NOT 除外 AND [コンボ] AND [階層フィルタ] AND [お気に入りのみ]
//
// 条件はすべて squirrel の述語として積み上げ、値はプレースホルダで渡す。

// latestAnswerCTE は最新回答を1アイテム1行で求めるCTE。
// 同時刻の回答は seq の大きい方を最新とする。
func latestAnswerCTE(t kindTables) string {
	return fmt.Sprintf(
		`WITH latest AS (SELECT DISTINCT ON (a.%[2]s) a.%[2]s AS item_id, a.answer FROM %[1]s a WHERE a.user_id = ? ORDER BY a.%[2]s, a.created_at DESC, a.seq DESC)`,
		t.answers, t.itemCol,
	)
}

// studyStatusChain は対象アイテムと全祖先のエイリアス。
var studyStatusChain = []string{"i", "ar", "c", "t", "l", "m"}

// studyBase はSELECT列以外の共通部分を組み立てる。
func studyBase(b sq.SelectBuilder, t kindTables, userID string, filter model.StudyFilter) sq.SelectBuilder {
	b = b.Prefix(latestAnswerCTE(t), userID).
		From(t.items+" i").
		Join("artigos ar ON ar.id = i.artigo_id").
		Join("capitulos c ON c.id = ar.capitulo_id").
		Join("titulos t ON t.id = c.titulo_id").
		Join("leis l ON l.id = t.lei_id").
		Join("materias m ON m.id = l.materia_id").
		LeftJoin("latest la ON la.item_id = i.id").
		LeftJoin(fmt.Sprintf("%s fav ON fav.%s = i.id AND fav.user_id = ?", t.favorites, t.itemCol), userID)

	for _, alias := range studyStatusChain {
		b = b.Where(alias + ".status")
	}

	b = b.Where(sq.Expr(
		fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s ig WHERE ig.%s = i.id AND ig.user_id = ?)", t.ignores, t.itemCol),
		userID,
	))

	if filter.ComboID != "" {
		b = b.Where(sq.Expr("EXISTS (SELECT 1 FROM combo_leis cl WHERE cl.lei_id = l.id AND cl.combo_id = ?)", filter.ComboID))
	}

	levels := []struct {
		column string
		ids    []string
	}{
		{"m.id", filter.MateriaIDs},
		{"l.id", filter.LeiIDs},
		{"t.id", filter.TituloIDs},
		{"c.id", filter.CapituloIDs},
		{"ar.id", filter.ArtigoIDs},
	}
	for _, lv := range levels {
		// 空スライスは squirrel で (1=0) になるため、絞り込まない場合は述語を追加しない
		if len(lv.ids) > 0 {
			b = b.Where(sq.Eq{lv.column: lv.ids})
		}
	}

	if filter.OnlyFavorites {
		b = b.Where("fav.user_id IS NOT NULL")
	}
	return b
}

// deckColumns はStudyItemに対応するSELECT列。クイズは設問を表面、正誤を裏面とする。
func deckColumns(kind model.Kind) []string {
	front, back := "i.front", "i.back"
	if kind == model.KindQuizzes {
		front = "i.statement"
		back = "CASE WHEN i.answer THEN 'Certo' ELSE 'Errado' END"
	}
	return []string{
		"i.id", front, back, "i.fundamento",
		"m.name", "m.color", "l.name",
		"fav.user_id IS NOT NULL",
		"COALESCE(la.answer, '')",
	}
}

// buildDeckQuery はデッキ抽出クエリを組み立てる。
// initial は最新回答が sabia 以外のアイテムをランダムに、
// 名前付きモードは最新回答が一致するアイテムをID順にページングして返す。
func buildDeckQuery(userID string, kind model.Kind, filter model.StudyFilter, mode model.StudyMode, page int) (string, []interface{}, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return "", nil, err
	}

	b := studyBase(psql.Select(deckColumns(kind)...), t, userID, filter)

	switch mode {
	case model.ModeInitial:
		b = b.Where(sq.Expr("(la.answer IS NULL OR la.answer <> ?)", string(model.AnswerSabia))).
			OrderBy("random()").
			Limit(model.DeckPageSize)
	case model.ModeSabia, model.ModeDuvida, model.ModeNaoSabia:
		if page < 1 {
			page = 1
		}
		if page > model.MaxDeckPage {
			return "", nil, model.NewValidationError(model.FieldError{Field: "page", Message: "página muito alta"})
		}
		b = b.Where(sq.Eq{"la.answer": string(mode.Label())}).
			OrderBy("i.id").
			Limit(model.DeckPageSize).
			Offset(uint64((page - 1) * model.DeckPageSize))
	default:
		return "", nil, model.NewInvalidModeError(string(mode))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("デッキクエリの組み立てに失敗しました: %w", err)
	}
	return query, args, nil
}

// buildProgressQuery は進捗集計クエリを組み立てる。最新回答は CTE で1回だけ求める。
func buildProgressQuery(userID string, kind model.Kind, filter model.StudyFilter) (string, []interface{}, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return "", nil, err
	}

	b := psql.Select("COUNT(*)").
		Column("COUNT(*) FILTER (WHERE fav.user_id IS NOT NULL)").
		Column("COUNT(*) FILTER (WHERE la.answer = ?)", string(model.AnswerSabia)).
		Column("COUNT(*) FILTER (WHERE la.answer = ?)", string(model.AnswerDuvida)).
		Column("COUNT(*) FILTER (WHERE la.answer = ?)", string(model.AnswerNaoSabia))
	b = studyBase(b, t, userID, filter)

	query, args, err := b.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("進捗クエリの組み立てに失敗しました: %w", err)
	}
	return query, args, nil
}
