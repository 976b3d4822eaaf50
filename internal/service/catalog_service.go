package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"go-moodle-catalog/internal/data"
	"go-moodle-catalog/internal/logger"
	"go-moodle-catalog/internal/moodle"
	"hash/crc32"
	"html/template"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

// DefaultPerPage is the catalog page size.
const DefaultPerPage = 12

const (
	catalogCachePrefix = "catalog:"
	defaultCacheTTL    = 10 * time.Minute
)

// courseGradients is the card background palette, indexed by course id.
var courseGradients = [][2]string{
	{"#0078d4", "#005a9e"},
	{"#1890ff", "#0050b3"},
	{"#2b88d8", "#0063b1"},
	{"#0086bf", "#005b94"},
	{"#3399ff", "#1a66cc"},
	{"#0066cc", "#004c99"},
	{"#4da6ff", "#0080ff"},
	{"#0099cc", "#006699"},
	{"#2e8bc0", "#1a5490"},
	{"#006ba6", "#004770"},
}

// CourseGradient returns a stable CSS gradient for a course card.
func CourseGradient(courseID int64) string {
	sum := crc32.ChecksumIEEE([]byte(strconv.FormatInt(courseID, 10)))
	colors := courseGradients[sum%uint32(len(courseGradients))]
	return fmt.Sprintf("linear-gradient(135deg, %s 0%%, %s 100%%)", colors[0], colors[1])
}

// PricingSource provides the price display settings.
type PricingSource interface {
	PricingSettings(ctx context.Context) (PricingSettings, error)
}

// CatalogFilter selects a catalog page. SubcategoryID narrows to that
// category alone; CategoryID includes its whole subtree.
type CatalogFilter struct {
	CategoryID    int64  `json:"categoria,omitempty"`
	SubcategoryID int64  `json:"subcategoria,omitempty"`
	Search        string `json:"busca,omitempty"`
	Page          int    `json:"paged"`
	PerPage       int    `json:"per_page"`
	IncludeHidden bool   `json:"-"`
}

func (f CatalogFilter) normalized() CatalogFilter {
	f.Search = strings.TrimSpace(f.Search)
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = DefaultPerPage
	}
	if f.CategoryID < 0 {
		f.CategoryID = 0
	}
	if f.SubcategoryID < 0 {
		f.SubcategoryID = 0
	}
	return f
}

func (f CatalogFilter) cacheKey() string {
	v := url.Values{}
	v.Set("c", strconv.FormatInt(f.CategoryID, 10))
	v.Set("s", strconv.FormatInt(f.SubcategoryID, 10))
	v.Set("q", strings.ToLower(f.Search))
	v.Set("p", strconv.Itoa(f.Page))
	v.Set("n", strconv.Itoa(f.PerPage))
	v.Set("h", strconv.FormatBool(f.IncludeHidden))
	return catalogCachePrefix + v.Encode()
}

// CourseCard is one course as shown in the catalog.
type CourseCard struct {
	MoodleID     int64         `json:"id"`
	Name         string        `json:"name"`
	Shortname    string        `json:"shortname"`
	CategoryID   int64         `json:"category_id"`
	CategoryName string        `json:"category_name,omitempty"`
	Description  template.HTML `json:"description"`
	Gradient     string        `json:"gradient"`
	Price        *PriceView    `json:"price,omitempty"`
}

// CatalogPage is one page of the public catalog.
type CatalogPage struct {
	Filter     CatalogFilter `json:"filter"`
	Courses    []CourseCard  `json:"courses"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PerPage    int           `json:"per_page"`
	TotalPages int           `json:"total_pages"`
}

// HasPrev reports whether a previous page exists.
func (p *CatalogPage) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a next page exists.
func (p *CatalogPage) HasNext() bool { return p.Page < p.TotalPages }

// CategoryNode is a category with its children, for tree rendering.
type CategoryNode struct {
	MoodleID int64           `json:"id"`
	Name     string          `json:"name"`
	Path     string          `json:"path"`
	Depth    int             `json:"depth"`
	Children []*CategoryNode `json:"children,omitempty"`
}

// CategoryOption is a flattened tree entry for select boxes.
type CategoryOption struct {
	MoodleID    int64
	Name        string
	Depth       int
	HasChildren bool
}

// Indent is a prefix of non-breaking spaces proportional to depth.
func (o CategoryOption) Indent() string {
	return strings.Repeat("\u00a0\u00a0", o.Depth)
}

// Stats counts the locally stored catalog.
type Stats struct {
	Categories   int `json:"categories"`
	Courses      int `json:"courses"`
	EnrolMethods int `json:"enrol_methods"`
}

// CatalogOptions configures the catalog page cache.
type CatalogOptions struct {
	Cache PageCache
	TTL   time.Duration
}

// CatalogService answers read-side catalog queries.
type CatalogService struct {
	categories CategoryStore
	courses    CourseStore
	methods    EnrolMethodStore
	pricing    PricingSource
	cache      PageCache
	ttl        time.Duration
	markdown   goldmark.Markdown
	sanitizer  *bluemonday.Policy
	log        logger.Logger
}

var _ Invalidator = (*CatalogService)(nil)

// NewCatalogService creates a CatalogService. opts.Cache may be nil.
func NewCatalogService(categories CategoryStore, courses CourseStore, methods EnrolMethodStore, pricing PricingSource, opts CatalogOptions, log logger.Logger) *CatalogService {
	if log == nil {
		log = logger.Nop()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CatalogService{
		categories: categories,
		courses:    courses,
		methods:    methods,
		pricing:    pricing,
		cache:      opts.Cache,
		ttl:        ttl,
		markdown:   goldmark.New(),
		// Descriptions come from the remote site; only safe formatting survives.
		sanitizer: bluemonday.UGCPolicy(),
		log:       log,
	}
}

// TopLevelCategories lists the roots of the category forest.
func (s *CatalogService) TopLevelCategories(ctx context.Context) ([]*data.Category, error) {
	return s.categories.GetTopLevel(ctx)
}

// Subcategories lists the direct children of a category.
func (s *CatalogService) Subcategories(ctx context.Context, parentID int64) ([]*data.Category, error) {
	return s.categories.GetChildren(ctx, parentID)
}

// HasSubcategories reports whether a category has children.
func (s *CatalogService) HasSubcategories(ctx context.Context, id int64) (bool, error) {
	n, err := s.categories.CountChildren(ctx, id)
	return n > 0, err
}

// Category finds a category by remote id. It returns nil when not found.
func (s *CatalogService) Category(ctx context.Context, id int64) (*data.Category, error) {
	return s.categories.GetByMoodleID(ctx, id)
}

// AllCategories lists every stored category.
func (s *CatalogService) AllCategories(ctx context.Context) ([]*data.Category, error) {
	return s.categories.GetAll(ctx)
}

// DescendantIDs returns id followed by the ids of every category below it.
func (s *CatalogService) DescendantIDs(ctx context.Context, id int64) ([]int64, error) {
	ids := []int64{id}
	seen := map[int64]bool{id: true}
	for i := 0; i < len(ids); i++ {
		children, err := s.categories.GetChildIDs(ctx, ids[i])
		if err != nil {
			return nil, fmt.Errorf("failed to load subcategories of %d: %w", ids[i], err)
		}
		for _, child := range children {
			// parent_id comes from the remote site; a cycle must not loop forever.
			if !seen[child] {
				seen[child] = true
				ids = append(ids, child)
			}
		}
	}
	return ids, nil
}

// CategoryIDsFromPath returns the category at the end of path and every
// category whose path lies below it.
func (s *CatalogService) CategoryIDsFromPath(ctx context.Context, path string) ([]int64, error) {
	return s.categories.GetIDsByPath(ctx, path)
}

// CoursesByCategoryTree lists the courses of a category, and of its whole
// subtree when includeSubs is set.
func (s *CatalogService) CoursesByCategoryTree(ctx context.Context, id int64, includeSubs bool) ([]*data.Course, error) {
	ids := []int64{id}
	if includeSubs {
		var err error
		if ids, err = s.DescendantIDs(ctx, id); err != nil {
			return nil, err
		}
	}
	return s.courses.Find(ctx, data.CourseFilter{CategoryIDs: ids})
}

// SearchCourses matches term case-insensitively against name and shortname,
// optionally within one category.
func (s *CatalogService) SearchCourses(ctx context.Context, term string, categoryID *int64) ([]*data.Course, error) {
	f := data.CourseFilter{Search: term}
	if categoryID != nil {
		f.CategoryIDs = []int64{*categoryID}
	}
	return s.courses.Find(ctx, f)
}

// ListCourses lists courses ordered by name. A limit of zero lists all.
func (s *CatalogService) ListCourses(ctx context.Context, limit, offset int) ([]*data.Course, error) {
	return s.courses.Find(ctx, data.CourseFilter{Limit: limit, Offset: offset})
}

// CountCourses counts every stored course.
func (s *CatalogService) CountCourses(ctx context.Context) (int, error) {
	return s.courses.Count(ctx, data.CourseFilter{})
}

// Course finds a course by remote id. It returns nil when not found.
func (s *CatalogService) Course(ctx context.Context, id int64) (*data.Course, error) {
	return s.courses.GetByMoodleID(ctx, id)
}

// CourseEnrolMethods lists the methods of a course, most expensive first.
func (s *CatalogService) CourseEnrolMethods(ctx context.Context, courseID int64) ([]*data.EnrolMethod, error) {
	return s.methods.GetByCourse(ctx, courseID)
}

// CourseBestPrice resolves the display price of one course.
func (s *CatalogService) CourseBestPrice(ctx context.Context, courseID int64) (*data.EnrolMethod, error) {
	methods, err := s.methods.GetByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return BestPrice(methods), nil
}

// Stats counts the stored catalog.
func (s *CatalogService) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.Categories, err = s.categories.Count(ctx); err != nil {
		return st, err
	}
	if st.Courses, err = s.courses.Count(ctx, data.CourseFilter{}); err != nil {
		return st, err
	}
	if st.EnrolMethods, err = s.methods.Count(ctx); err != nil {
		return st, err
	}
	return st, nil
}

// CategoryTree builds the category forest. Categories whose parent is not
// stored are treated as roots.
func (s *CatalogService) CategoryTree(ctx context.Context) ([]*CategoryNode, error) {
	all, err := s.categories.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	nodes := make(map[int64]*CategoryNode, len(all))
	for _, c := range all {
		nodes[c.MoodleID] = &CategoryNode{MoodleID: c.MoodleID, Name: c.Name, Path: c.Path}
	}

	var roots []*CategoryNode
	for _, c := range all {
		node := nodes[c.MoodleID]
		parent, ok := nodes[c.ParentID]
		if c.ParentID == 0 || !ok || parent == node {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	sortNodes(roots, 0, map[int64]bool{})
	return roots, nil
}

func sortNodes(nodes []*CategoryNode, depth int, seen map[int64]bool) {
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	for _, n := range nodes {
		if seen[n.MoodleID] {
			n.Children = nil
			continue
		}
		seen[n.MoodleID] = true
		n.Depth = depth
		sortNodes(n.Children, depth+1, seen)
	}
}

// CategoryOptions flattens the category tree depth-first.
func (s *CatalogService) CategoryOptions(ctx context.Context) ([]CategoryOption, error) {
	roots, err := s.CategoryTree(ctx)
	if err != nil {
		return nil, err
	}
	var opts []CategoryOption
	var walk func(nodes []*CategoryNode)
	walk = func(nodes []*CategoryNode) {
		for _, n := range nodes {
			opts = append(opts, CategoryOption{MoodleID: n.MoodleID, Name: n.Name, Depth: n.Depth, HasChildren: len(n.Children) > 0})
			walk(n.Children)
		}
	}
	walk(roots)
	return opts, nil
}

// RenderDescription turns a course description into safe HTML according to
// its Moodle text format.
func (s *CatalogService) RenderDescription(c *data.Course) template.HTML {
	if c == nil || strings.TrimSpace(c.Description) == "" {
		return ""
	}
	var html string
	switch c.DescriptionFormat {
	case moodle.FormatMarkdown:
		var buf bytes.Buffer
		if err := s.markdown.Convert([]byte(c.Description), &buf); err != nil {
			s.log.With(map[string]interface{}{"course_id": c.MoodleID}).Error(err, "Failed to render markdown description")
			html = template.HTMLEscapeString(c.Description)
		} else {
			html = buf.String()
		}
	case moodle.FormatPlain:
		html = "<p>" + strings.ReplaceAll(template.HTMLEscapeString(c.Description), "\n", "<br>") + "</p>"
	default:
		html = c.Description
	}
	return template.HTML(s.sanitizer.Sanitize(html))
}

// Catalog returns one filtered page of courses with their display prices.
func (s *CatalogService) Catalog(ctx context.Context, f CatalogFilter) (*CatalogPage, error) {
	f = f.normalized()
	key := f.cacheKey()
	if page := s.cached(ctx, key); page != nil {
		return page, nil
	}

	cf := data.CourseFilter{Search: f.Search, VisibleOnly: !f.IncludeHidden}
	switch {
	case f.SubcategoryID > 0:
		cf.CategoryIDs = []int64{f.SubcategoryID}
	case f.CategoryID > 0:
		ids, err := s.DescendantIDs(ctx, f.CategoryID)
		if err != nil {
			return nil, err
		}
		cf.CategoryIDs = ids
	}

	total, err := s.courses.Count(ctx, cf)
	if err != nil {
		return nil, fmt.Errorf("failed to count courses: %w", err)
	}

	cf.Limit = f.PerPage
	cf.Offset = (f.Page - 1) * f.PerPage
	courses, err := s.courses.Find(ctx, cf)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}

	cards, err := s.cards(ctx, courses)
	if err != nil {
		return nil, err
	}

	page := &CatalogPage{
		Filter:     f,
		Courses:    cards,
		Total:      total,
		Page:       f.Page,
		PerPage:    f.PerPage,
		TotalPages: (total + f.PerPage - 1) / f.PerPage,
	}
	s.store(ctx, key, page)
	return page, nil
}

func (s *CatalogService) cards(ctx context.Context, courses []*data.Course) ([]CourseCard, error) {
	cards := make([]CourseCard, 0, len(courses))
	if len(courses) == 0 {
		return cards, nil
	}

	courseIDs := make([]int64, 0, len(courses))
	categoryIDs := make([]int64, 0, len(courses))
	for _, c := range courses {
		courseIDs = append(courseIDs, c.MoodleID)
		if c.CategoryID > 0 {
			categoryIDs = append(categoryIDs, c.CategoryID)
		}
	}

	methods, err := s.methods.GetByCourses(ctx, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load enrol methods: %w", err)
	}
	categories, err := s.categories.GetByMoodleIDs(ctx, categoryIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.MoodleID] = c.Name
	}
	pricing, err := s.pricing.PricingSettings(ctx)
	if err != nil {
		return nil, err
	}
	formatter := pricing.Formatter()

	for _, c := range courses {
		cards = append(cards, CourseCard{
			MoodleID:     c.MoodleID,
			Name:         c.Name,
			Shortname:    c.Shortname,
			CategoryID:   c.CategoryID,
			CategoryName: names[c.CategoryID],
			Description:  s.RenderDescription(c),
			Gradient:     CourseGradient(c.MoodleID),
			Price:        formatter.View(BestPrice(methods[c.MoodleID])),
		})
	}
	return cards, nil
}

func (s *CatalogService) cached(ctx context.Context, key string) *CatalogPage {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Error(err, "Catalog cache read failed")
		return nil
	}
	if raw == nil {
		return nil
	}
	var page CatalogPage
	if err := json.Unmarshal(raw, &page); err != nil {
		s.log.Error(err, "Catalog cache entry is corrupt")
		return nil
	}
	return &page
}

func (s *CatalogService) store(ctx context.Context, key string, page *CatalogPage) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(page)
	if err != nil {
		s.log.Error(err, "Failed to encode catalog page")
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.log.Error(err, "Catalog cache write failed")
	}
}

// Invalidate drops every cached catalog page.
func (s *CatalogService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	n, err := s.cache.DeletePrefix(context.WithoutCancel(ctx), catalogCachePrefix)
	if err != nil {
		s.log.Error(err, "Failed to invalidate catalog cache")
		return
	}
	s.log.With(map[string]interface{}{"entries": n}).Debug("Catalog cache invalidated")
}
