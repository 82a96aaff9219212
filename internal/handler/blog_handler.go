package handler

import (
	"net/http"

	"github.com/korvad/korvadweb/internal/model"
	"github.com/korvad/korvadweb/internal/view"
)

// BlogHandler は公開ブログのページを提供する。
type BlogHandler struct {
	posts    PostServiceInterface
	renderer Renderer
}

// NewBlogHandler はBlogHandlerを生成する。
func NewBlogHandler(posts PostServiceInterface, renderer Renderer) *BlogHandler {
	return &BlogHandler{posts: posts, renderer: renderer}
}

// List は記事一覧を新しい順に描画する。
// GET /blog
func (h *BlogHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListPosts(r.Context())
	if err != nil {
		writeErrorWith(w, r, err, errorTexts{storage: "Error fetching blog posts"})
		return
	}

	data := baseData(r)
	data.Posts = posts
	render(w, r, h.renderer, http.StatusOK, view.PageBlog, data)
}

// Detail は記事詳細を描画する。
// GET /blog/{id}
func (h *BlogHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, ok := postIDParam(w, r, model.NewPostNotFoundError(0).Message)
	if !ok {
		return
	}

	post, err := h.posts.GetPost(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	data := baseData(r)
	data.Post = post
	render(w, r, h.renderer, http.StatusOK, view.PagePostDetail, data)
}
