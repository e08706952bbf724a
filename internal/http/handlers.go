package http

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"gearbook/app/internal/db"
	"gearbook/app/internal/http/templates"
	tmpl "gearbook/app/internal/templates"
	"gearbook/app/internal/wiki"
)

const (
	htmlContentType      = "text/html; charset=utf-8"
	errorFallbackMessage = "We couldn't process your request right now."
)

type htmlResponse struct {
	Status      int
	ContentType string `header:"Content-Type"`
	Location    string `header:"Location"`
	Body        []byte
}

type wikiInput struct {
	Slug string `path:"slug"`
}

type templateRedirectInput struct {
	PageID uint   `path:"pageID"`
	Name   string `path:"name"`
}

type templateOptionsInput struct {
	Type string `query:"type"`
}

type templateOptionView struct {
	PageID       uint   `json:"page_id"`
	TemplateName string `json:"template_name"`
	RecordType   string `json:"record_type"`
	MachineSlug  string `json:"machine_slug,omitempty"`
	LocationSlug string `json:"location_slug,omitempty"`
	Priority     string `json:"priority,omitempty"`
	Label        string `json:"label"`
}

type templateOptionsResponse struct {
	Body struct {
		Options []templateOptionView `json:"options"`
	}
}

type healthResponse struct {
	Status int
	Body   struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
}

func (s *Server) registerHomeRoute() {
	huma.Get(s.api, "/", s.homeHandler, htmlOperation("Gearbook home", stdhttp.StatusInternalServerError))
}

func (s *Server) registerWikiRoute() {
	huma.Get(s.api, "/wiki/{slug}", s.wikiHandler, htmlOperation(
		"Fetch wiki page",
		stdhttp.StatusBadRequest,
		stdhttp.StatusNotFound,
		stdhttp.StatusInternalServerError,
	))
}

func (s *Server) registerEditRoute() {
	huma.Get(s.api, "/wiki/{slug}/edit", s.editHandler, htmlOperation(
		"Edit wiki page",
		stdhttp.StatusBadRequest,
		stdhttp.StatusInternalServerError,
	))
}

func (s *Server) registerTemplateRedirectRoute() {
	huma.Get(s.api, "/wiki/{pageID}/templates/{name}", s.templateRedirectHandler, htmlOperation(
		"Redirect to prefilled create form",
		stdhttp.StatusFound,
		stdhttp.StatusNotFound,
		stdhttp.StatusInternalServerError,
	))
}

func (s *Server) registerTemplateOptionsRoute() {
	huma.Get(s.api, "/api/template-options", s.templateOptionsHandler, func(op *huma.Operation) {
		op.Summary = "List template options for create-form pickers"
	})
}

func (s *Server) registerHealthRoute() {
	huma.Get(s.api, "/healthz", s.healthHandler, func(op *huma.Operation) {
		op.Summary = "Health check"
	})
}

func (s *Server) homeHandler(ctx context.Context, _ *struct{}) (*htmlResponse, error) {
	pages, err := s.wiki.ListPages(ctx)
	if err != nil {
		s.recordError(ctx, err, "listing pages", nil)
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, "We couldn't load the page index.")
	}

	data := templates.HomePageData{Title: "Gearbook"}
	data.Pages = make([]templates.PageListItem, 0, len(pages))
	for _, page := range pages {
		data.Pages = append(data.Pages, templates.PageListItem{
			Title: page.Title,
			URL:   "/wiki/" + page.Slug,
		})
	}

	body, err := renderComponent(ctx, templates.HomePage(data))
	if err != nil {
		s.recordError(ctx, err, "rendering home page", nil)
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, "We couldn't render the homepage.")
	}

	return newHTMLResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) wikiHandler(ctx context.Context, input *wikiInput) (*htmlResponse, error) {
	page, err := s.wiki.GetPage(ctx, input.Slug)
	if err != nil {
		status, message := classifyError(err)
		if status != stdhttp.StatusNotFound {
			s.recordError(ctx, err, "loading wiki page", logrus.Fields{"slug": input.Slug})
		}
		return s.renderErrorResponse(ctx, status, message)
	}

	html, err := s.wiki.RenderPage(ctx, page)
	if err != nil {
		s.recordError(ctx, err, "rendering wiki page", logrus.Fields{"slug": input.Slug})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
	}

	body, err := renderComponent(ctx, templates.WikiPage(templates.WikiPageData{
		Title: page.Title,
		Slug:  page.Slug,
		HTML:  html,
	}))
	if err != nil {
		s.recordError(ctx, err, "rendering wiki view", logrus.Fields{"slug": input.Slug})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
	}

	return newHTMLResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) editHandler(ctx context.Context, input *wikiInput) (*htmlResponse, error) {
	data := templates.EditPageData{
		Title: "Edit • Gearbook",
		Slug:  input.Slug,
	}

	page, err := s.wiki.GetPage(ctx, input.Slug)
	if err != nil && !eris.Is(err, wiki.ErrPageNotFound) {
		status, message := classifyError(err)
		s.recordError(ctx, err, "loading page for edit", logrus.Fields{"slug": input.Slug})
		return s.renderErrorResponse(ctx, status, message)
	}

	if page != nil {
		data.PageTitle = page.Title
		data.Content = page.Content
	}

	return s.renderEditPage(ctx, stdhttp.StatusOK, data)
}

// editSubmitHandler accepts the urlencoded editor form. A save blocked by
// marker validation re-renders the form with the author-facing error list.
func (s *Server) editSubmitHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	slug := r.PathValue("slug")
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		s.recordError(ctx, err, "parsing edit form", logrus.Fields{"slug": slug})
		stdhttp.Error(w, "invalid form submission", stdhttp.StatusBadRequest)
		return
	}

	title := r.PostFormValue("title")
	content := r.PostFormValue("content")

	page, fieldErrors, err := s.wiki.SavePage(ctx, slug, title, content)
	if err != nil {
		s.recordError(ctx, err, "saving wiki page", logrus.Fields{"slug": slug})
		stdhttp.Error(w, errorFallbackMessage, stdhttp.StatusInternalServerError)
		return
	}

	if len(fieldErrors) > 0 {
		resp, renderErr := s.renderEditPage(ctx, stdhttp.StatusUnprocessableEntity, templates.EditPageData{
			Title:       "Edit • Gearbook",
			Slug:        slug,
			PageTitle:   title,
			Content:     content,
			FieldErrors: fieldErrors,
		})
		if renderErr != nil || resp == nil {
			stdhttp.Error(w, errorFallbackMessage, stdhttp.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", resp.ContentType)
		w.WriteHeader(resp.Status)
		_, _ = w.Write(resp.Body)
		return
	}

	stdhttp.Redirect(w, r, "/wiki/"+page.Slug, stdhttp.StatusSeeOther)
}

func (s *Server) templateRedirectHandler(ctx context.Context, input *templateRedirectInput) (*htmlResponse, error) {
	prefill, err := s.wiki.TemplatePrefill(ctx, input.PageID, input.Name)
	if err != nil {
		if eris.Is(err, wiki.ErrPageNotFound) || eris.Is(err, wiki.ErrTemplateNotFound) {
			return s.renderErrorResponse(ctx, stdhttp.StatusNotFound, "That template is not available on this page.")
		}

		s.recordError(ctx, err, "resolving template prefill", logrus.Fields{
			"page_id":  input.PageID,
			"template": input.Name,
		})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
	}

	response := newHTMLResponse(stdhttp.StatusFound, nil)
	response.Location = prefill.PrefillRedirectURL()

	return response, nil
}

func (s *Server) templateOptionsHandler(ctx context.Context, input *templateOptionsInput) (*templateOptionsResponse, error) {
	if input.Type != "" {
		if _, ok := tmpl.RecordTypeByName(input.Type); !ok {
			return nil, huma.Error400BadRequest(fmt.Sprintf("unknown record type %q", input.Type))
		}
	}

	options, err := s.wiki.TemplateOptions(ctx, input.Type)
	if err != nil {
		s.recordError(ctx, err, "listing template options", logrus.Fields{"record_type": input.Type})
		return nil, huma.Error500InternalServerError(errorFallbackMessage)
	}

	resp := &templateOptionsResponse{}
	resp.Body.Options = make([]templateOptionView, 0, len(options))
	for _, option := range options {
		resp.Body.Options = append(resp.Body.Options, templateOptionView{
			PageID:       option.PageID,
			TemplateName: option.TemplateName,
			RecordType:   option.RecordType,
			MachineSlug:  option.MachineSlug,
			LocationSlug: option.LocationSlug,
			Priority:     option.Priority,
			Label:        option.Label,
		})
	}

	return resp, nil
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	resp := &healthResponse{}
	resp.Body.Status = "ok"
	resp.Body.Database = "ok"

	sqlDB, err := db.SQLDB(s.db)
	if err != nil {
		s.recordError(ctx, err, "obtaining sql db", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
	} else if pingErr := sqlDB.PingContext(ctx); pingErr != nil {
		s.recordError(ctx, pingErr, "pinging database", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
	}

	if resp.Status == 0 {
		resp.Status = stdhttp.StatusOK
	}

	return resp, nil
}

func (s *Server) renderEditPage(ctx context.Context, status int, data templates.EditPageData) (*htmlResponse, error) {
	body, err := renderComponent(ctx, templates.EditPage(data))
	if err != nil {
		s.recordError(ctx, err, "rendering edit page", logrus.Fields{"slug": data.Slug})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
	}

	return newHTMLResponse(status, body), nil
}

func newHTMLResponse(status int, body []byte) *htmlResponse {
	return &htmlResponse{
		Status:      status,
		ContentType: htmlContentType,
		Body:        body,
	}
}

func htmlOperation(summary string, statuses ...int) func(op *huma.Operation) {
	return func(op *huma.Operation) {
		if summary != "" {
			op.Summary = summary
		}
		if op.Responses == nil {
			op.Responses = map[string]*huma.Response{}
		}

		statusCodes := append([]int{stdhttp.StatusOK}, statuses...)
		for _, status := range statusCodes {
			code := strconv.Itoa(status)
			op.Responses[code] = &huma.Response{
				Description: stdhttp.StatusText(status),
				Content: map[string]*huma.MediaType{
					htmlContentType: {
						Schema: &huma.Schema{Type: "string"},
					},
				},
			}
		}
	}
}

func classifyError(err error) (int, string) {
	if err == nil {
		return stdhttp.StatusInternalServerError, errorFallbackMessage
	}

	if eris.Is(err, wiki.ErrPageNotFound) {
		return stdhttp.StatusNotFound, "That page doesn't exist yet. Use the editor to create it."
	}

	switch cause := eris.Cause(err).Error(); cause {
	case "slug is required":
		return stdhttp.StatusBadRequest, "A wiki slug is required to load a page."
	default:
		return stdhttp.StatusInternalServerError, errorFallbackMessage
	}
}

func (s *Server) renderErrorResponse(ctx context.Context, status int, message string) (*htmlResponse, error) {
	label := fmt.Sprintf("%d %s", status, stdhttp.StatusText(status))
	title := fmt.Sprintf("%s • Gearbook", label)
	component := templates.ErrorPage(templates.ErrorPageData{
		Title:       title,
		StatusLabel: label,
		Message:     message,
	})

	body, err := renderComponent(ctx, component)
	if err != nil {
		s.recordError(ctx, err, "rendering error page", logrus.Fields{"status": status})
		fallback := []byte(fmt.Sprintf("<html><body><h1>%s</h1><p>%s</p></body></html>", label, message))
		return newHTMLResponse(status, fallback), nil
	}

	return newHTMLResponse(status, body), nil
}
