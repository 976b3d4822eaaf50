//go:build unit

package handler

import (
	"go-moodle-catalog/internal/data"
	"go-moodle-catalog/internal/logger"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeoHandler_Robots(t *testing.T) {
	h := NewSeoHandler(&fakeCatalog{}, "https://catalog.example.com/", logger.Nop())
	rr := httptest.NewRecorder()

	h.robotsHandler(rr, httptest.NewRequest(http.MethodGet, "/robots.txt", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Disallow: /admin")
	assert.Contains(t, rr.Body.String(), "Sitemap: https://catalog.example.com/sitemap.xml")
}

func TestSeoHandler_Sitemap(t *testing.T) {
	older := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	c := &fakeCatalog{categories: []*data.Category{
		{MoodleID: 1, Name: "A", UpdatedAt: older},
		{MoodleID: 7, Name: "B", UpdatedAt: newer},
	}}
	h := NewSeoHandler(c, "https://catalog.example.com", logger.Nop())

	rr := serveApp(h.sitemapHandler, httptest.NewRequest(http.MethodGet, "/sitemap.xml", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/xml", rr.Header().Get("Content-Type"))
	body := rr.Body.String()
	assert.Contains(t, body, "<loc>https://catalog.example.com/cursos</loc>\n    <lastmod>2024-05-02</lastmod>")
	assert.Contains(t, body, "<loc>https://catalog.example.com/cursos?categoria=7</loc>")
	assert.Contains(t, body, "<lastmod>2024-03-01</lastmod>")
}

func TestSeoHandler_SitemapEmpty(t *testing.T) {
	h := NewSeoHandler(&fakeCatalog{}, "https://catalog.example.com", logger.Nop())

	rr := serveApp(h.sitemapHandler, httptest.NewRequest(http.MethodGet, "/sitemap.xml", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<loc>https://catalog.example.com/cursos</loc>")
	assert.NotContains(t, rr.Body.String(), "lastmod")
}
