package handler

import (
	"go-moodle-catalog/internal/logger"
	"go-moodle-catalog/internal/middleware"
	"go-moodle-catalog/internal/service"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// CatalogHandler serves the public course catalog.
type CatalogHandler struct {
	catalog Catalog
	view    middleware.Renderer
	log     logger.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(c Catalog, v middleware.Renderer, log logger.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: c, view: v, log: log}
}

// filterFromQuery reads categoria, subcategoria, busca and paged.
// Malformed numbers are treated as absent.
func filterFromQuery(q url.Values) service.CatalogFilter {
	return service.CatalogFilter{
		CategoryID:    queryInt64(q, "categoria"),
		SubcategoryID: queryInt64(q, "subcategoria"),
		Search:        strings.TrimSpace(q.Get("busca")),
		Page:          int(queryInt64(q, "paged")),
	}
}

func queryInt64(q url.Values, key string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(q.Get(key)), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// catalogHandler renders the catalog page, or JSON when asked for it.
func (h *CatalogHandler) catalogHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	if middleware.WantsJSON(r) {
		return h.apiCoursesHandler(w, r)
	}

	q := r.URL.Query()
	page, err := h.catalog.Catalog(r.Context(), filterFromQuery(q))
	if err != nil {
		return &middleware.AppError{Error: err, Message: "Falha ao carregar o catálogo", Code: http.StatusInternalServerError}
	}
	topLevel, err := h.catalog.TopLevelCategories(r.Context())
	if err != nil {
		return &middleware.AppError{Error: err, Message: "Falha ao carregar as categorias", Code: http.StatusInternalServerError}
	}

	var subcategories []service.CategoryOption
	if page.Filter.CategoryID > 0 {
		options, err := h.catalog.CategoryOptions(r.Context())
		if err != nil {
			return &middleware.AppError{Error: err, Message: "Falha ao carregar as categorias", Code: http.StatusInternalServerError}
		}
		subcategories = subtreeOptions(options, page.Filter.CategoryID)
	}

	// Drop the page number so pagination links can set their own.
	q.Del("paged")
	data := map[string]interface{}{
		"Page":          page,
		"TopLevel":      topLevel,
		"Subcategories": subcategories,
		"Query":         q,
	}
	if err := h.view.Render(w, r, "catalog.html", data); err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to render catalog", Code: http.StatusInternalServerError}
	}
	return nil
}

// subtreeOptions returns the options below root, re-based so that root's
// children have depth 0.
func subtreeOptions(options []service.CategoryOption, root int64) []service.CategoryOption {
	var out []service.CategoryOption
	for i, o := range options {
		if o.MoodleID != root {
			continue
		}
		for _, child := range options[i+1:] {
			if child.Depth <= o.Depth {
				break
			}
			child.Depth -= o.Depth + 1
			out = append(out, child)
		}
		break
	}
	return out
}

func (h *CatalogHandler) apiCoursesHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	page, err := h.catalog.Catalog(r.Context(), filterFromQuery(r.URL.Query()))
	if err != nil {
		return &middleware.AppError{Error: err, Message: "Falha ao carregar o catálogo", Code: http.StatusInternalServerError}
	}
	if err := middleware.WriteJSON(w, http.StatusOK, page); err != nil {
		h.log.Error(err, "Failed to write catalog response")
	}
	return nil
}

func (h *CatalogHandler) apiCategoriesHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	tree, err := h.catalog.CategoryTree(r.Context())
	if err != nil {
		return &middleware.AppError{Error: err, Message: "Falha ao carregar as categorias", Code: http.StatusInternalServerError}
	}
	if tree == nil {
		tree = []*service.CategoryNode{}
	}
	if err := middleware.WriteJSON(w, http.StatusOK, tree); err != nil {
		h.log.Error(err, "Failed to write categories response")
	}
	return nil
}
