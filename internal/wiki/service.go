package wiki

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"gearbook/app/internal/markdown"
	"gearbook/app/internal/templates"
)

// Service defines higher-level wiki operations built on top of the
// repository and the template marker processor.
type Service interface {
	GetPage(ctx context.Context, slug string) (*Page, error)
	RenderPage(ctx context.Context, page *Page) (string, error)
	SavePage(ctx context.Context, slug, title, content string) (*Page, []string, error)
	DeletePage(ctx context.Context, slug string) error
	ListPages(ctx context.Context) ([]Page, error)
	SyncTemplateOptions(ctx context.Context, page *Page) (TemplateSyncResult, error)
	TemplatePrefill(ctx context.Context, pageID uint, name string) (*TemplatePrefill, error)
	TemplateOptions(ctx context.Context, recordType string) ([]TemplateOption, error)
}

// TemplateSyncResult summarizes one option index rebuild.
type TemplateSyncResult struct {
	Registered   []templates.ActionBlock
	RemovedCount int
}

// Changed reports whether the rebuild touched the index at all.
func (r TemplateSyncResult) Changed() bool {
	return len(r.Registered) > 0 || r.RemovedCount > 0
}

// TemplatePrefill carries everything the create-record redirect flow needs:
// where to send the maintainer and which form fields to fill.
type TemplatePrefill struct {
	CreateURL string
	Field     string
	Content   string
	Tags      string
	Title     string
	Priority  string
}

// ErrPageNotFound indicates the requested wiki page does not exist.
var ErrPageNotFound = eris.New("wiki page not found")

// ErrTemplateNotFound indicates the named template block could not be
// extracted from its page.
var ErrTemplateNotFound = eris.New("template block not found")

type service struct {
	repo      Repository
	processor *templates.Processor
	renderer  *markdown.Renderer
	sanitizer *markdown.Sanitizer
	logger    *logrus.Logger
	sentryHub *sentry.Hub
}

var _ Service = (*service)(nil)

// NewService wires the wiki service with its dependencies.
func NewService(repo Repository, processor *templates.Processor, renderer *markdown.Renderer, sanitizer *markdown.Sanitizer, logger *logrus.Logger, hub *sentry.Hub) (Service, error) {
	if repo == nil {
		return nil, eris.New("wiki repository is required")
	}
	if processor == nil {
		return nil, eris.New("template processor is required")
	}
	if renderer == nil {
		return nil, eris.New("markdown renderer is required")
	}
	if sanitizer == nil {
		return nil, eris.New("html sanitizer is required")
	}

	return &service{
		repo:      repo,
		processor: processor,
		renderer:  renderer,
		sanitizer: sanitizer,
		logger:    logger,
		sentryHub: hub,
	}, nil
}

func (s *service) GetPage(ctx context.Context, slug string) (*Page, error) {
	trimmedSlug := strings.TrimSpace(slug)
	if trimmedSlug == "" {
		return nil, eris.New("slug is required")
	}

	page, err := s.repo.GetBySlug(ctx, trimmedSlug)
	if err != nil {
		s.recordError(logrus.Fields{"slug": trimmedSlug}, err, "retrieving page from repository")
		return nil, eris.Wrapf(err, "retrieving page: %s", trimmedSlug)
	}

	if page == nil {
		return nil, eris.Wrapf(ErrPageNotFound, "retrieving page: %s", trimmedSlug)
	}

	return page, nil
}

// RenderPage produces display HTML for a page. Template markers are
// tokenized before the markdown render, and button markup is injected only
// after sanitization; the injected markup is trusted, user content is not.
func (s *service) RenderPage(ctx context.Context, page *Page) (string, error) {
	if page == nil {
		return "", eris.New("page is nil")
	}

	processed, tokens := s.processor.PrepareForRendering(page.Content)

	rendered, err := s.renderer.Render(processed)
	if err != nil {
		s.recordError(logrus.Fields{"slug": page.Slug}, err, "rendering page markdown")
		return "", eris.Wrapf(err, "rendering page: %s", page.Slug)
	}

	sanitized := s.sanitizer.Sanitize(rendered)

	return s.processor.InjectButtons(sanitized, tokens, page.ID), nil
}

// SavePage validates template marker syntax, persists the page, and rebuilds
// its option index. A non-empty error list means the save was blocked by
// author-facing validation; it is not a failure of the service itself.
func (s *service) SavePage(ctx context.Context, slug, title, content string) (*Page, []string, error) {
	trimmedSlug := strings.TrimSpace(slug)
	if trimmedSlug == "" {
		return nil, nil, eris.New("slug is required")
	}

	if fieldErrors := s.processor.ValidateSyntax(content); len(fieldErrors) > 0 {
		return nil, fieldErrors, nil
	}

	page, err := s.repo.GetBySlug(ctx, trimmedSlug)
	if err != nil {
		s.recordError(logrus.Fields{"slug": trimmedSlug}, err, "loading page for save")
		return nil, nil, eris.Wrapf(err, "loading page for save: %s", trimmedSlug)
	}

	if page == nil {
		page = &Page{Slug: trimmedSlug}
	}

	page.Title = strings.TrimSpace(title)
	if page.Title == "" {
		page.Title = trimmedSlug
	}
	page.Content = content

	if err := s.repo.CreateOrUpdate(ctx, page); err != nil {
		s.recordError(logrus.Fields{"slug": trimmedSlug}, err, "persisting page")
		return nil, nil, eris.Wrapf(err, "persisting page: %s", trimmedSlug)
	}

	result, err := s.SyncTemplateOptions(ctx, page)
	if err != nil {
		return nil, nil, err
	}

	if result.Changed() && s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"slug":       page.Slug,
			"registered": len(result.Registered),
			"removed":    result.RemovedCount,
		}).Info("template option index rebuilt")
	}

	return page, nil, nil
}

func (s *service) DeletePage(ctx context.Context, slug string) error {
	page, err := s.GetPage(ctx, slug)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, page.ID); err != nil {
		s.recordError(logrus.Fields{"slug": page.Slug}, err, "deleting page")
		return eris.Wrapf(err, "deleting page: %s", page.Slug)
	}

	return nil
}

func (s *service) ListPages(ctx context.Context) ([]Page, error) {
	pages, err := s.repo.ListPages(ctx)
	if err != nil {
		s.recordError(nil, err, "listing pages")
		return nil, eris.Wrap(err, "listing pages")
	}

	return pages, nil
}

// SyncTemplateOptions is the single source of truth for the persisted option
// index: it always rebuilds the page's rows from scratch, never patches them
// incrementally, which sidesteps drift between content edits and index state.
func (s *service) SyncTemplateOptions(ctx context.Context, page *Page) (TemplateSyncResult, error) {
	if page == nil {
		return TemplateSyncResult{}, eris.New("page is nil")
	}
	if page.ID == 0 {
		return TemplateSyncResult{}, eris.New("page is not persisted")
	}

	blocks := s.processor.OptionBlocks(page.Content)

	rows := make([]TemplateOption, 0, len(blocks))
	for _, block := range blocks {
		rows = append(rows, TemplateOption{
			PageID:       page.ID,
			TemplateName: block.Name,
			RecordType:   block.RecordType,
			MachineSlug:  block.MachineSlug,
			LocationSlug: block.LocationSlug,
			Priority:     block.Priority,
			Label:        block.Label,
		})
	}

	removed, err := s.repo.ReplaceTemplateOptions(ctx, page.ID, rows)
	if err != nil {
		s.recordError(logrus.Fields{"slug": page.Slug}, err, "rebuilding template option index")
		return TemplateSyncResult{}, eris.Wrapf(err, "rebuilding template option index: %s", page.Slug)
	}

	return TemplateSyncResult{Registered: blocks, RemovedCount: removed}, nil
}

// TemplatePrefill resolves the create-record redirect for one template
// button: it re-extracts the named block from the page content and maps the
// record type to its create route and prefill field.
func (s *service) TemplatePrefill(ctx context.Context, pageID uint, name string) (*TemplatePrefill, error) {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return nil, eris.New("template name is required")
	}

	page, err := s.repo.GetByID(ctx, pageID)
	if err != nil {
		s.recordError(logrus.Fields{"page_id": pageID}, err, "loading page for template prefill")
		return nil, eris.Wrapf(err, "loading page for template prefill: %d", pageID)
	}
	if page == nil {
		return nil, eris.Wrapf(ErrPageNotFound, "loading page for template prefill: %d", pageID)
	}

	block := s.processor.Extract(page.Content, trimmedName)
	if block == nil {
		return nil, eris.Wrapf(ErrTemplateNotFound, "extracting template '%s' from page: %s", trimmedName, page.Slug)
	}

	recordType, ok := templates.RecordTypeByName(block.RecordType)
	if !ok {
		return nil, eris.Errorf("record type '%s' is not registered", block.RecordType)
	}

	prefill := &TemplatePrefill{
		CreateURL: recordType.CreateURL(url.PathEscape(block.MachineSlug)),
		Field:     recordType.PrefillField,
		Content:   block.Content,
		Tags:      block.Tags,
	}

	if recordType.HasTitle {
		prefill.Title = block.Title
	}
	if recordType.HasPriority {
		prefill.Priority = block.Priority
	}

	return prefill, nil
}

func (s *service) TemplateOptions(ctx context.Context, recordType string) ([]TemplateOption, error) {
	trimmed := strings.TrimSpace(recordType)
	if trimmed != "" {
		if _, ok := templates.RecordTypeByName(trimmed); !ok {
			return nil, eris.Errorf("record type '%s' is not registered", trimmed)
		}
	}

	options, err := s.repo.ListTemplateOptions(ctx, trimmed)
	if err != nil {
		s.recordError(logrus.Fields{"record_type": trimmed}, err, "listing template options")
		return nil, eris.Wrap(err, "listing template options")
	}

	return options, nil
}

func (s *service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}

// PrefillRedirectURL builds the final create-form URL with prefill values in
// the query string.
func (p *TemplatePrefill) PrefillRedirectURL() string {
	values := url.Values{}
	values.Set(p.Field, p.Content)
	if p.Tags != "" {
		values.Set("tags", p.Tags)
	}
	if p.Title != "" {
		values.Set("title", p.Title)
	}
	if p.Priority != "" {
		values.Set("priority", p.Priority)
	}

	return fmt.Sprintf("%s?%s", p.CreateURL, values.Encode())
}
