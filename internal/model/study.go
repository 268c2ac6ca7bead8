package model

import (
	"math"
	"time"
)

// Kind は学習コンテンツの種別を表す。
type Kind string

const (
	// KindFlashcards はフラッシュカード。
	KindFlashcards Kind = "flashcards"
	// KindQuizzes は正誤（Certo/Errado）問題。
	KindQuizzes Kind = "quizzes"
)

// ParseKind はURLパス等の文字列からKindを解析する。
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindFlashcards, KindQuizzes:
		return Kind(s), nil
	default:
		return "", NewInvalidKindError(s)
	}
}

// AnswerLabel は自己申告の回答結果ラベル。
type AnswerLabel string

const (
	// AnswerSabia は「知っていた」。
	AnswerSabia AnswerLabel = "sabia"
	// AnswerDuvida は「自信がない」。
	AnswerDuvida AnswerLabel = "duvida"
	// AnswerNaoSabia は「知らなかった」。
	AnswerNaoSabia AnswerLabel = "nao_sabia"
)

// ParseAnswerLabel は回答ラベルを検証して返す。
func ParseAnswerLabel(s string) (AnswerLabel, error) {
	switch AnswerLabel(s) {
	case AnswerSabia, AnswerDuvida, AnswerNaoSabia:
		return AnswerLabel(s), nil
	default:
		return "", NewInvalidAnswerError(s)
	}
}

// StudyItem は学習画面に表示するアイテム1件。
// フラッシュカードとクイズで共通の形に揃えている。
// クイズでは Front が設問、Back が "Certo" / "Errado"。
type StudyItem struct {
	ID           string
	Front        string
	Back         string
	Fundamento   string
	MateriaName  string
	MateriaColor string
	LeiName      string
	IsFavorite   bool
	LastAnswer   AnswerLabel // 未回答の場合は空
}

// Progress はスコープ内の進捗集計。
// Sabia, Duvida, NaoSabia は各アイテムの最新回答で排他的に数える。
type Progress struct {
	Total    int `json:"total"`
	Favorite int `json:"favorite"`
	Sabia    int `json:"sabia"`
	Duvida   int `json:"duvida"`
	NaoSabia int `json:"nao_sabia"`
}

// Answered は1回以上回答されたアイテム数を返す。
func (p Progress) Answered() int {
	return p.Sabia + p.Duvida + p.NaoSabia
}

// Answer は回答ログ1件（追記のみ）。
type Answer struct {
	ID        string
	Seq       int64
	UserID    string
	ItemID    string
	Label     AnswerLabel
	CreatedAt time.Time
}

// Flashcard は管理画面で扱うフラッシュカード。
type Flashcard struct {
	ID         string
	ArtigoID   string
	Front      string
	Back       string
	Fundamento string
	Status     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Quiz は管理画面で扱う正誤問題。
type Quiz struct {
	ID         string
	ArtigoID   string
	Statement  string
	Answer     bool // true = Certo
	Fundamento string
	Status     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StudyMode は学習デッキの抽出モード。
type StudyMode string

const (
	// ModeInitial は最新回答が sabia 以外（未回答含む）のアイテムをランダムに抽出する。
	ModeInitial StudyMode = "initial"
	// ModeSabia, ModeDuvida, ModeNaoSabia は最新回答が一致するアイテムをページ単位で抽出する。
	ModeSabia    StudyMode = "sabia"
	ModeDuvida   StudyMode = "duvida"
	ModeNaoSabia StudyMode = "nao_sabia"
)

// ParseStudyMode はURLパスの type セグメントを解析する。
func ParseStudyMode(s string) (StudyMode, error) {
	switch StudyMode(s) {
	case ModeInitial, ModeSabia, ModeDuvida, ModeNaoSabia:
		return StudyMode(s), nil
	default:
		return "", NewInvalidModeError(s)
	}
}

// Label は名前付きモードに対応する回答ラベルを返す。initialでは空を返す。
func (m StudyMode) Label() AnswerLabel {
	if m == ModeInitial {
		return ""
	}
	return AnswerLabel(m)
}

// StudyFilter は抽出・集計のスコープ条件。
// 空のIDリストはその階層で絞り込まないことを意味する。
type StudyFilter struct {
	ComboID       string
	MateriaIDs    []string
	LeiIDs        []string
	TituloIDs     []string
	CapituloIDs   []string
	ArtigoIDs     []string
	OnlyFavorites bool
}

// DeckPageSize は1回の抽出で返す最大件数。
const DeckPageSize = 10

// MaxDeckPage は受け付けるページ番号の上限。OFFSETがint32に収まる範囲。
const MaxDeckPage = math.MaxInt32 / DeckPageSize
