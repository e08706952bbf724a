package http

import (
	"context"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"

	"gearbook/app/internal/db"
	"gearbook/app/internal/wiki"
)

type stubWikiService struct {
	getPage         func(ctx context.Context, slug string) (*wiki.Page, error)
	renderPage      func(ctx context.Context, page *wiki.Page) (string, error)
	savePage        func(ctx context.Context, slug, title, content string) (*wiki.Page, []string, error)
	listPages       func(ctx context.Context) ([]wiki.Page, error)
	templatePrefill func(ctx context.Context, pageID uint, name string) (*wiki.TemplatePrefill, error)
	templateOptions func(ctx context.Context, recordType string) ([]wiki.TemplateOption, error)
}

var _ wiki.Service = (*stubWikiService)(nil)

func (s *stubWikiService) GetPage(ctx context.Context, slug string) (*wiki.Page, error) {
	if s.getPage == nil {
		return nil, eris.Wrap(wiki.ErrPageNotFound, "stub")
	}
	return s.getPage(ctx, slug)
}

func (s *stubWikiService) RenderPage(ctx context.Context, page *wiki.Page) (string, error) {
	if s.renderPage == nil {
		return "", nil
	}
	return s.renderPage(ctx, page)
}

func (s *stubWikiService) SavePage(ctx context.Context, slug, title, content string) (*wiki.Page, []string, error) {
	if s.savePage == nil {
		return &wiki.Page{Slug: slug, Title: title, Content: content}, nil, nil
	}
	return s.savePage(ctx, slug, title, content)
}

func (s *stubWikiService) DeletePage(ctx context.Context, slug string) error {
	return nil
}

func (s *stubWikiService) ListPages(ctx context.Context) ([]wiki.Page, error) {
	if s.listPages == nil {
		return nil, nil
	}
	return s.listPages(ctx)
}

func (s *stubWikiService) SyncTemplateOptions(ctx context.Context, page *wiki.Page) (wiki.TemplateSyncResult, error) {
	return wiki.TemplateSyncResult{}, nil
}

func (s *stubWikiService) TemplatePrefill(ctx context.Context, pageID uint, name string) (*wiki.TemplatePrefill, error) {
	if s.templatePrefill == nil {
		return nil, eris.Wrap(wiki.ErrTemplateNotFound, "stub")
	}
	return s.templatePrefill(ctx, pageID, name)
}

func (s *stubWikiService) TemplateOptions(ctx context.Context, recordType string) ([]wiki.TemplateOption, error) {
	if s.templateOptions == nil {
		return nil, nil
	}
	return s.templateOptions(ctx, recordType)
}

func setupServer(t *testing.T, svc wiki.Service) *Server {
	t.Helper()

	database, err := db.Open(db.Options{
		Path:   filepath.Join(t.TempDir(), "gearbook.db"),
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close(database)
	})

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	srv, err := NewServer(Options{
		WikiService: svc,
		Database:    database,
		Logger:      logger,
		RateLimiter: RateLimiterSettings{
			RequestsPerSecond: 1000,
			Burst:             1000,
			ClientTTL:         time.Minute,
		},
	})
	if err != nil {
		t.Fatalf("constructing server: %v", err)
	}

	return srv
}

func TestNewServerRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewServer(Options{}); err == nil {
		t.Fatalf("expected error when wiki service is missing")
	}

	if _, err := NewServer(Options{WikiService: &stubWikiService{}}); err == nil {
		t.Fatalf("expected error when database is missing")
	}
}

func TestNewServerValidatesRateLimiterSettings(t *testing.T) {
	t.Parallel()

	database, err := db.Open(db.Options{
		Path:   filepath.Join(t.TempDir(), "gearbook.db"),
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close(database)
	})

	_, err = NewServer(Options{
		WikiService: &stubWikiService{},
		Database:    database,
		RateLimiter: RateLimiterSettings{RequestsPerSecond: 1, Burst: 0, ClientTTL: time.Minute},
	})
	if err == nil {
		t.Fatalf("expected error for zero burst")
	}
}

func TestHomeRouteListsPages(t *testing.T) {
	t.Parallel()

	svc := &stubWikiService{
		listPages: func(ctx context.Context) ([]wiki.Page, error) {
			return []wiki.Page{
				{Slug: "press-brake", Title: "Press Brake"},
				{Slug: "kiln", Title: "Kiln"},
			}, nil
		},
	}

	srv := setupServer(t, svc)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/", nil))

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `/wiki/press-brake`) || !strings.Contains(body, "Press Brake") {
		t.Fatalf("expected page list in body, got: %s", body)
	}
}

func TestWikiRouteRendersPage(t *testing.T) {
	t.Parallel()

	svc := &stubWikiService{
		getPage: func(ctx context.Context, slug string) (*wiki.Page, error) {
			return &wiki.Page{Slug: slug, Title: "Kiln"}, nil
		},
		renderPage: func(ctx context.Context, page *wiki.Page) (string, error) {
			return "<h1>Kiln</h1><p>Firing schedule</p>", nil
		},
	}

	srv := setupServer(t, svc)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/wiki/kiln", nil))

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "Firing schedule") {
		t.Fatalf("expected rendered article in body, got: %s", body)
	}
	if !strings.Contains(body, `/wiki/kiln/edit`) {
		t.Fatalf("expected edit link in body, got: %s", body)
	}
}

func TestWikiRouteMissingPageReturnsNotFound(t *testing.T) {
	t.Parallel()

	svc := &stubWikiService{
		getPage: func(ctx context.Context, slug string) (*wiki.Page, error) {
			return nil, eris.Wrapf(wiki.ErrPageNotFound, "retrieving page: %s", slug)
		},
	}

	srv := setupServer(t, svc)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/wiki/ghost", nil))

	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Fatalf("expected html error page, got content type %q", ct)
	}
}

func TestEditRouteShowsEmptyFormForNewPage(t *testing.T) {
	t.Parallel()

	srv := setupServer(t, &stubWikiService{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/wiki/new-machine/edit", nil))

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `action="/wiki/new-machine/edit"`) {
		t.Fatalf("expected editor form in body, got: %s", rec.Body.String())
	}
}

func TestEditSubmitRedirectsOnSuccess(t *testing.T) {
	t.Parallel()

	srv := setupServer(t, &stubWikiService{})

	form := url.Values{}
	form.Set("title", "Kiln")
	form.Set("content", "# Kiln")

	req := httptest.NewRequest(stdhttp.MethodPost, "/wiki/kiln/edit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/wiki/kiln" {
		t.Fatalf("expected redirect to /wiki/kiln, got %q", loc)
	}
}

func TestEditSubmitRendersValidationErrors(t *testing.T) {
	t.Parallel()

	svc := &stubWikiService{
		savePage: func(ctx context.Context, slug, title, content string) (*wiki.Page, []string, error) {
			return nil, []string{"template 'intake': missing template:end"}, nil
		},
	}

	srv := setupServer(t, svc)

	form := url.Values{}
	form.Set("content", "<!-- template:start name=\"intake\" -->")

	req := httptest.NewRequest(stdhttp.MethodPost, "/wiki/kiln/edit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "missing template:end") {
		t.Fatalf("expected validation message in body, got: %s", rec.Body.String())
	}
}

func TestTemplateRedirectIssuesFound(t *testing.T) {
	t.Parallel()

	svc := &stubWikiService{
		templatePrefill: func(ctx context.Context, pageID uint, name string) (*wiki.TemplatePrefill, error) {
			if pageID != 42 || name != "intake" {
				return nil, eris.Errorf("unexpected prefill lookup: page=%d name=%s", pageID, name)
			}
			return &wiki.TemplatePrefill{
				CreateURL: "/machines/blackout/problems/new",
				Field:     "description",
				Content:   "Checklist",
				Priority:  "task",
			}, nil
		},
	}

	srv := setupServer(t, svc)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/wiki/42/templates/intake", nil))

	if rec.Code != stdhttp.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}

	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parsing redirect location: %v", err)
	}
	if loc.Path != "/machines/blackout/problems/new" {
		t.Fatalf("expected create route, got %q", loc.Path)
	}
	if got := loc.Query().Get("description"); got != "Checklist" {
		t.Fatalf("expected prefilled description, got %q", got)
	}
	if got := loc.Query().Get("priority"); got != "task" {
		t.Fatalf("expected prefilled priority, got %q", got)
	}
}

func TestTemplateRedirectUnknownTemplateReturnsNotFound(t *testing.T) {
	t.Parallel()

	srv := setupServer(t, &stubWikiService{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/wiki/42/templates/ghost", nil))

	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestTemplateOptionsRouteReturnsJSON(t *testing.T) {
	t.Parallel()

	svc := &stubWikiService{
		templateOptions: func(ctx context.Context, recordType string) ([]wiki.TemplateOption, error) {
			if recordType != "problem" {
				return nil, eris.Errorf("unexpected record type filter: %q", recordType)
			}
			return []wiki.TemplateOption{
				{
					PageID:       7,
					TemplateName: "intake",
					RecordType:   "problem",
					MachineSlug:  "blackout",
					Priority:     "task",
					Label:        "Report intake problem",
				},
			}, nil
		},
	}

	srv := setupServer(t, svc)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/api/template-options?type=problem", nil))

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Options []struct {
			PageID       uint   `json:"page_id"`
			TemplateName string `json:"template_name"`
			RecordType   string `json:"record_type"`
			Label        string `json:"label"`
		} `json:"options"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	if len(payload.Options) != 1 {
		t.Fatalf("expected one option, got %d", len(payload.Options))
	}
	if payload.Options[0].TemplateName != "intake" || payload.Options[0].PageID != 7 {
		t.Fatalf("unexpected option payload: %+v", payload.Options[0])
	}
}

func TestTemplateOptionsRouteRejectsUnknownType(t *testing.T) {
	t.Parallel()

	srv := setupServer(t, &stubWikiService{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/api/template-options?type=invoice", nil))

	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthRouteReportsOK(t *testing.T) {
	t.Parallel()

	srv := setupServer(t, &stubWikiService{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/healthz", nil))

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("expected ok status in body, got: %s", rec.Body.String())
	}
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	t.Parallel()

	srv := setupServer(t, &stubWikiService{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/healthz", nil))

	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}
