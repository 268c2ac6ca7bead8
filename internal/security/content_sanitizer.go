// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はカード本文・分類名などの入力をサニタイズし、
// 学習画面でのXSSを防ぐ。bluemondayの許可リストベースのポリシーで、
// 安全なタグと属性のみを通過させる。
package security

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ContentSanitizerService は入力テキストのサニタイズ機能のインターフェースを定義する。
// CSVインポートと管理画面からの登録・更新時に使用される。
type ContentSanitizerService interface {
	// Text は全てのHTMLタグを除去したプレーンテキストを返す。
	// カードの表面・裏面、設問、分類名、コンボ名に使う。前後の空白は除去する。
	Text(raw string) string

	// HTML は許可タグ（p, br, a, ul, ol, li, blockquote, pre, code, strong, em）のみを通過させる。
	// aタグにはtarget="_blank"とrel="noopener noreferrer"が自動付与される。
	HTML(rawHTML string) string

	// Markdown はMarkdownをHTMLに変換し、HTML と同じポリシーでサニタイズする。
	// 根拠（fundamento）の保存形式はこの出力。空文字列の入力には空文字列を返す。
	Markdown(src string) (string, error)
}

// contentSanitizer はContentSanitizerServiceの実装。
// ポリシーとMarkdown変換器はスレッドセーフに共有できる。
type contentSanitizer struct {
	strict *bluemonday.Policy
	rich   *bluemonday.Policy
	md     goldmark.Markdown
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	// script, iframe, style, img等は許可リストに含めないことで除去される
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("https", "http")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	// 生HTMLはgoldmark側でも出力しない（WithUnsafeを付けない）
	md := goldmark.New(
		goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
	)

	return &contentSanitizer{
		strict: bluemonday.StrictPolicy(),
		rich:   p,
		md:     md,
	}
}

// Text は全てのHTMLタグを除去する。
func (s *contentSanitizer) Text(raw string) string {
	return strings.TrimSpace(s.strict.Sanitize(raw))
}

// HTML は許可タグのみを残したHTMLを返す。
func (s *contentSanitizer) HTML(rawHTML string) string {
	return s.rich.Sanitize(rawHTML)
}

// Markdown はMarkdownをサニタイズ済みHTMLに変換する。
func (s *contentSanitizer) Markdown(src string) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("Markdownの変換に失敗: %w", err)
	}
	return strings.TrimSpace(s.rich.Sanitize(buf.String())), nil
}
