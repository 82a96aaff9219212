// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizer はブログ記事本文をMarkdownから変換したHTMLをサニタイズする。
// 管理者の入力であっても、描画前に許可リストベースのポリシーを通す。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer はHTMLコンテンツのサニタイズを行う。
// bluemondayのポリシーはスレッドセーフなので、インスタンスは共有してよい。
type ContentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerを生成する。
// ポリシーの内容:
//   - 許可タグ: 見出し、段落、リスト、引用、コード、強調、表、区切り線、a、img
//   - 禁止タグ: script, iframe, style および全てのon*イベント属性
//   - aのhref: 相対URLとhttp/https/mailto。外部リンクには target="_blank" と rel="noopener noreferrer" を付与
//   - imgのsrc属性: 相対URLとhttp/https
func NewContentSanitizer() *ContentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"h1", "h2", "h3", "h4", "h5", "h6",
		"p", "br", "hr", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "del",
		"table", "thead", "tbody", "tr", "th", "td",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("http", "https", "mailto")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnFullyQualifiedLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")

	return &ContentSanitizer{policy: p}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
// 同一入力に対して常に同一出力を返す。
func (s *ContentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
