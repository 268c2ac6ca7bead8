package study

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/jusmemoriza/internal/model"
)

// クエリパラメータ名。フォームの name 属性と一致させる。
const (
	paramMateria  = "materiaId"
	paramLei      = "leiId"
	paramTitulo   = "tituloId"
	paramCapitulo = "capituloId"
	paramArtigo   = "artigoId"
	paramFavorite = "favorite"
	paramPage     = "page"
)

// ParseFilter はクエリ文字列から抽出条件とページ番号を解析する。
// IDはUUIDとして検証し、重複を除いてソートした状態で返す。
// pageは省略時1で、model.MaxDeckPage を超える値は検証エラー。
func ParseFilter(comboID string, q url.Values) (model.StudyFilter, int, error) {
	var fields []model.FieldError

	ids := func(param string) []string {
		out, bad := normalizeIDs(q[param])
		if bad != "" {
			fields = append(fields, model.FieldError{Field: param, Message: "ID inválido: " + bad})
		}
		return out
	}

	filter := model.StudyFilter{
		ComboID:       comboID,
		MateriaIDs:    ids(paramMateria),
		LeiIDs:        ids(paramLei),
		TituloIDs:     ids(paramTitulo),
		CapituloIDs:   ids(paramCapitulo),
		ArtigoIDs:     ids(paramArtigo),
		OnlyFavorites: q.Get(paramFavorite) == "on",
	}

	page := 1
	if raw := q.Get(paramPage); raw != "" {
		n, err := strconv.Atoi(raw)
		switch {
		case err != nil || n < 1:
			fields = append(fields, model.FieldError{Field: paramPage, Message: "página inválida"})
		case n > model.MaxDeckPage:
			fields = append(fields, model.FieldError{Field: paramPage, Message: "página muito alta"})
		default:
			page = n
		}
	}

	if len(fields) > 0 {
		return model.StudyFilter{}, 0, model.NewValidationError(fields...)
	}
	return filter, page, nil
}

// normalizeIDs は空値を除き、UUIDを検証して重複なしの昇順で返す。
// 不正な値があった場合は最初の1件を bad として返す。
func normalizeIDs(values []string) (ids []string, bad string) {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !IsValidID(v) {
			if bad == "" {
				bad = v
			}
			continue
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		ids = append(ids, v)
	}
	sort.Strings(ids)
	return ids, bad
}

// IsValidID はアイテム・コンボ等のIDとして妥当な形式か判定する。
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// CacheKey はデッキキャッシュのキーを組み立てる。
// 種別・モード・コンボと正規化したクエリ文字列から決まり、
// 名前付きモードではページ番号も含める。
func CacheKey(kind model.Kind, mode model.StudyMode, filter model.StudyFilter, page int) string {
	q := url.Values{}
	set := func(param string, ids []string) {
		if len(ids) > 0 {
			q[param] = ids
		}
	}
	set(paramMateria, filter.MateriaIDs)
	set(paramLei, filter.LeiIDs)
	set(paramTitulo, filter.TituloIDs)
	set(paramCapitulo, filter.CapituloIDs)
	set(paramArtigo, filter.ArtigoIDs)
	if filter.OnlyFavorites {
		q.Set(paramFavorite, "on")
	}
	if mode != model.ModeInitial {
		q.Set(paramPage, strconv.Itoa(page))
	}
	return strings.Join([]string{string(kind), string(mode), filter.ComboID, q.Encode()}, "|")
}
