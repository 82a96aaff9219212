package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/korvad/korvadweb/internal/model"
	"github.com/korvad/korvadweb/internal/view"
)

// PlanCatalog は料金プランの参照に必要なインターフェース。catalog.Catalogが実装する。
type PlanCatalog interface {
	Lookup(slug string) (model.ServicePlan, bool)
	Plans() []model.ServicePlan
}

// PageHandler はマーケティング用の静的ページとプラン詳細を提供する。
type PageHandler struct {
	renderer Renderer
	catalog  PlanCatalog
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(renderer Renderer, catalog PlanCatalog) *PageHandler {
	return &PageHandler{renderer: renderer, catalog: catalog}
}

// Index はトップページを描画する。
// GET /
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	render(w, r, h.renderer, http.StatusOK, view.PageIndex, baseData(r))
}

// Contacto は問い合わせページを描画する。
// GET /contacto
func (h *PageHandler) Contacto(w http.ResponseWriter, r *http.Request) {
	render(w, r, h.renderer, http.StatusOK, view.PageContacto, baseData(r))
}

// Precios は料金ページを描画する。
// GET /precios
func (h *PageHandler) Precios(w http.ResponseWriter, r *http.Request) {
	data := baseData(r)
	data.Plans = h.catalog.Plans()
	render(w, r, h.renderer, http.StatusOK, view.PagePrecios, data)
}

// Servicio はプラン詳細を描画する。プラン名の大文字小文字は区別しない。
// GET /servicios/{planName}
func (h *PageHandler) Servicio(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "planName")
	plan, ok := h.catalog.Lookup(slug)
	if !ok {
		writeError(w, r, model.NewPlanNotFoundError(slug))
		return
	}

	data := baseData(r)
	data.Plan = &plan
	render(w, r, h.renderer, http.StatusOK, view.PageServicio, data)
}
