// Package view はHTMLテンプレートの描画を提供する。
//
// テンプレートと静的ファイルはバイナリに埋め込む。
// ページごとにlayout.htmlと組み合わせたテンプレートセットを起動時に一度だけ構築する。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	humanize "github.com/dustin/go-humanize"
	"github.com/russross/blackfriday/v2"

	"github.com/korvad/korvadweb/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// ページテンプレート名
const (
	PageIndex      = "index.html"
	PageContacto   = "contacto.html"
	PagePrecios    = "precios.html"
	PageServicio   = "servicio.html"
	PageBlog       = "blog.html"
	PagePostDetail = "post_detail.html"
	PageAdminLogin = "admin_login.html"
	PageAdminPanel = "admin_panel.html"
	PageAdminEdit  = "admin_edit.html"
)

var pages = []string{
	PageIndex, PageContacto, PagePrecios, PageServicio,
	PageBlog, PagePostDetail,
	PageAdminLogin, PageAdminPanel, PageAdminEdit,
}

// Sanitizer はMarkdownから生成したHTMLを無害化する。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// Data はテンプレートに渡す値。ページごとに必要なフィールドのみ設定する。
type Data struct {
	CSRFToken     string
	Authenticated bool
	Error         string
	Posts         []*model.Post
	Post          *model.Post
	Plan          *model.ServicePlan
	Plans         []model.ServicePlan
}

// Renderer はページテンプレートを保持し描画する。
type Renderer struct {
	pages     map[string]*template.Template
	sanitizer Sanitizer
}

// New はすべてのページテンプレートを解析してRendererを生成する。
func New(sanitizer Sanitizer) (*Renderer, error) {
	funcs := template.FuncMap{
		"markdown":  markdownFunc(sanitizer),
		"humantime": humanize.Time,
		"date":      formatDate,
		"excerpt":   excerpt,
		"comma": func(n int) string {
			return humanize.Comma(int64(n))
		},
		"year": func() int { return time.Now().Year() },
	}

	r := &Renderer{
		pages:     make(map[string]*template.Template, len(pages)),
		sanitizer: sanitizer,
	}
	for _, page := range pages {
		tmpl, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		r.pages[page] = tmpl
	}
	return r, nil
}

// Render はページを描画してstatusで書き込む。
// テンプレートはバッファに描画してから書き込む。
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data Data) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page template %q", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// Markdown は記事本文をサニタイズ済みHTMLに変換する。
func (r *Renderer) Markdown(source string) template.HTML {
	return Markdown(r.sanitizer, source)
}

// StaticHandler は埋め込みの静的ファイルを配信するハンドラーを返す。
// /static/ プレフィックスを除いたパスで解決する。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// Markdown は記事本文をHTMLに変換し、サニタイズした結果を返す。
func Markdown(sanitizer Sanitizer, source string) template.HTML {
	rendered := blackfriday.Run([]byte(source), blackfriday.WithExtensions(blackfriday.CommonExtensions|blackfriday.HardLineBreak))
	return template.HTML(sanitizer.Sanitize(string(rendered)))
}

func markdownFunc(sanitizer Sanitizer) func(string) template.HTML {
	return func(source string) template.HTML {
		return Markdown(sanitizer, source)
	}
}

// formatDate は日付をdd/mm/yyyy形式で返す。
func formatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

const excerptLength = 160

// excerpt は本文の先頭を一覧表示用に切り詰める。Markdownの記号は除去しない。
func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= excerptLength {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:excerptLength])) + "…"
}
