package handler

import (
	"encoding/xml"
	"fmt"
	"go-moodle-catalog/internal/logger"
	"go-moodle-catalog/internal/middleware"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SeoHandler serves robots.txt and the catalog sitemap.
type SeoHandler struct {
	catalog Catalog
	baseURL string
	log     logger.Logger
}

// NewSeoHandler creates a new SeoHandler. baseURL is the public address of the site.
func NewSeoHandler(c Catalog, baseURL string, log logger.Logger) *SeoHandler {
	return &SeoHandler{catalog: c, baseURL: strings.TrimRight(baseURL, "/"), log: log}
}

// robotsHandler serves robots.txt. The admin area stays out of indexes.
func (h *SeoHandler) robotsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "User-agent: *")
	fmt.Fprintln(w, "Allow: /")
	fmt.Fprintln(w, "Disallow: /admin")
	fmt.Fprintln(w, "Disallow: /webhooks/")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Sitemap: %s/sitemap.xml\n", h.baseURL)
}

const sitemapDateFormat = "2006-01-02"

type sitemapURL struct {
	XMLName xml.Name `xml:"url"`
	Loc     string   `xml:"loc"`
	LastMod string   `xml:"lastmod,omitempty"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// sitemapHandler lists the catalog page and one filtered page per category.
func (h *SeoHandler) sitemapHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	categories, err := h.catalog.AllCategories(r.Context())
	if err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to retrieve categories for sitemap", Code: http.StatusInternalServerError}
	}

	var newest time.Time
	urls := make([]sitemapURL, 0, len(categories)+1)
	for _, c := range categories {
		if c.UpdatedAt.After(newest) {
			newest = c.UpdatedAt
		}
		urls = append(urls, sitemapURL{
			Loc:     h.baseURL + "/cursos?categoria=" + strconv.FormatInt(c.MoodleID, 10),
			LastMod: formatLastMod(c.UpdatedAt),
		})
	}
	catalogURL := sitemapURL{Loc: h.baseURL + "/cursos", LastMod: formatLastMod(newest)}
	sitemap := urlSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  append([]sitemapURL{catalogURL}, urls...),
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Write([]byte(xml.Header))
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(sitemap); err != nil {
		// Headers are gone; only log.
		h.log.Error(err, "Failed to encode sitemap")
	}
	return nil
}

func formatLastMod(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(sitemapDateFormat)
}
