// Package catalog は料金プランのカタログを提供する。
// ルーティングのロジックからプランデータを切り離し、ハンドラーに注入する。
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/korvad/korvadweb/internal/model"
)

// bookingLink は全プラン共通の予約リンク。
const bookingLink = "https://calendly.com/pablo-ripoll-korvad/30min"

// Catalog はスラッグをキーとしたプランの不変コレクション。
// 生成後は変更されないため、複数goroutineから安全に参照できる。
type Catalog struct {
	plans []model.ServicePlan
	index map[string]model.ServicePlan
}

// New はplansからCatalogを生成する。
// スラッグは小文字に正規化され、空のスラッグや重複はエラーとする。
func New(plans []model.ServicePlan) (*Catalog, error) {
	c := &Catalog{
		plans: make([]model.ServicePlan, 0, len(plans)),
		index: make(map[string]model.ServicePlan, len(plans)),
	}
	for _, p := range plans {
		p.Slug = normalize(p.Slug)
		if p.Slug == "" {
			return nil, fmt.Errorf("plan %q has an empty slug", p.Title)
		}
		if _, dup := c.index[p.Slug]; dup {
			return nil, fmt.Errorf("duplicate plan slug %q", p.Slug)
		}
		c.index[p.Slug] = p
		c.plans = append(c.plans, p)
	}
	return c, nil
}

// Default は組み込みの3プラン（starter / profesional / enterprise）を持つCatalogを返す。
func Default() *Catalog {
	c, err := New(defaultPlans)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFile はJSONファイル（ServicePlanの配列）からCatalogを読み込む。
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var plans []model.ServicePlan
	if err := json.Unmarshal(data, &plans); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	if len(plans) == 0 {
		return nil, fmt.Errorf("catalog file %s has no plans", path)
	}
	return New(plans)
}

// Lookup はスラッグでプランを検索する。大文字小文字は区別しない。
func (c *Catalog) Lookup(slug string) (model.ServicePlan, bool) {
	p, ok := c.index[normalize(slug)]
	return p, ok
}

// Plans は登録順のプラン一覧のコピーを返す。
func (c *Catalog) Plans() []model.ServicePlan {
	out := make([]model.ServicePlan, len(c.plans))
	copy(out, c.plans)
	return out
}

func normalize(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

var defaultPlans = []model.ServicePlan{
	{
		Slug:        "starter",
		Title:       "Plan Starter",
		Description: "Auditoría SEO técnica, Investigacion KeyWords, Optimización AEO, Generación FAQs, Optimización de intención, Implementación Schema, Reporte rendimiento.",
		Price:       "649€/mes",
		PaymentLink: bookingLink,
	},
	{
		Slug:        "profesional",
		Title:       "Plan Profesional",
		Description: "Todo lo del Pack Starter, más: Análisis competitivo profundo, Creación contenido alta autoridad, Automatización Schema Avanzado, Trackeo de posicionamiento, Análisis y estrategia Backlinks, Monitorizacion inicial GEO.",
		Price:       "1.999€/mes",
		PaymentLink: bookingLink,
	},
	{
		Slug:        "enterprise",
		Title:       "Plan Enterprise",
		Description: "Todo lo del Pack Pro, más: Estrategia dominio completo, Estrategia GEO avanzada, Auditoría técnica contínua, Consultoría estrategica para ti, Adaptación al algoritmo, Contenido multimodal por IA.",
		Price:       "Desde 3.999€",
		PaymentLink: bookingLink,
	},
}
