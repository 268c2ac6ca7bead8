package model

import "time"

// Level は分類階層のレベルを表す。
// Materia → Lei → Titulo → Capitulo → Artigo の5階層。
type Level string

const (
	LevelMateria  Level = "materia"
	LevelLei      Level = "lei"
	LevelTitulo   Level = "titulo"
	LevelCapitulo Level = "capitulo"
	LevelArtigo   Level = "artigo"
)

// Levels は上位から順に並べた全レベル。
var Levels = []Level{LevelMateria, LevelLei, LevelTitulo, LevelCapitulo, LevelArtigo}

// Parent は親レベルを返す。Materiaは親を持たないため空文字を返す。
func (l Level) Parent() Level {
	switch l {
	case LevelLei:
		return LevelMateria
	case LevelTitulo:
		return LevelLei
	case LevelCapitulo:
		return LevelTitulo
	case LevelArtigo:
		return LevelCapitulo
	default:
		return ""
	}
}

// Valid は定義済みのレベルかどうかを返す。
func (l Level) Valid() bool {
	for _, v := range Levels {
		if v == l {
			return true
		}
	}
	return false
}

// TaxonomyNode は分類階層の1ノード（materia/lei/titulo/capitulo/artigo）を表す。
// 5テーブルは同じ形をしているため、レベルで区別する共通モデルとして扱う。
// Materiaのみ Color を、Artigoのみ Body を持つ。
type TaxonomyNode struct {
	ID        string
	Level     Level
	ParentID  string // Materiaでは空
	Name      string
	Color     string
	Body      string
	Status    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FilterOption はフィルタシートの選択肢1件。
type FilterOption struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}

// FilterOptions はコンボ配下の5階層分の選択肢。
type FilterOptions struct {
	Materias  []FilterOption `json:"materias"`
	Leis      []FilterOption `json:"leis"`
	Titulos   []FilterOption `json:"titulos"`
	Capitulos []FilterOption `json:"capitulos"`
	Artigos   []FilterOption `json:"artigos"`
}

// Combo はLeiの部分集合をまとめた学習単位。
type Combo struct {
	ID          string
	Name        string
	Description string
	ImageData   []byte
	ImageMime   string
	Status      bool
	LeiIDs      []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
