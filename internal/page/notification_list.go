package page

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/Priya8975/alert-notifications/internal/domain"
	"github.com/Priya8975/alert-notifications/internal/i18n"
	"github.com/Priya8975/alert-notifications/internal/settings"
)

// AlertLister fetches a page of alert subscriptions.
type AlertLister interface {
	GetAllAlerts(ctx context.Context, params domain.ListParams) (*domain.AlertList, error)
}

// AlertListerFunc adapts a plain function, such as a store method, to AlertLister.
type AlertListerFunc func(ctx context.Context, params domain.ListParams) (*domain.AlertList, error)

func (f AlertListerFunc) GetAllAlerts(ctx context.Context, params domain.ListParams) (*domain.AlertList, error) {
	return f(ctx, params)
}

// BreadcrumbFunc produces the breadcrumb trail shown above the page in the
// request's language.
type BreadcrumbFunc func(tr i18n.Translator) []domain.Breadcrumb

// TranslatorFunc picks a translator for the request's Accept-Language value.
type TranslatorFunc func(locale string) i18n.Translator

// RenderObserver is told the outcome of every render.
type RenderObserver interface {
	ObservePageRender(page string, state string)
}

// State of a loaded page.
type State string

const (
	StateLoading   State = "loading"
	StatePopulated State = "success"
	StateEmpty     State = "empty"
	StateError     State = "error"
)

const pageName = "notification_list"

// Deps are the collaborators of NotificationListPage.
type Deps struct {
	Alerts     AlertLister
	Breadcrumb BreadcrumbFunc
	Translator TranslatorFunc
	Components Components
	Observer   RenderObserver
	Logger     *slog.Logger
	PageSize   int
}

// NotificationListPage lists alert subscriptions with a title, description,
// an add action, a breadcrumb and a table or an empty state.
type NotificationListPage struct {
	alerts     AlertLister
	breadcrumb BreadcrumbFunc
	translator TranslatorFunc
	components Components
	observer   RenderObserver
	logger     *slog.Logger
	pageSize   int
}

func NewNotificationListPage(deps Deps) *NotificationListPage {
	p := &NotificationListPage{
		alerts:     deps.Alerts,
		breadcrumb: deps.Breadcrumb,
		translator: deps.Translator,
		components: deps.Components.withDefaults(),
		observer:   deps.Observer,
		logger:     deps.Logger,
		pageSize:   deps.PageSize,
	}
	if p.breadcrumb == nil {
		p.breadcrumb = func(tr i18n.Translator) []domain.Breadcrumb {
			return settings.GetSettingPageEntityBreadCrumb(tr, settings.CategoryNotifications, "")
		}
	}
	if p.translator == nil {
		p.translator = func(string) i18n.Translator { return i18n.KeyTranslator{} }
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if p.pageSize <= 0 {
		p.pageSize = domain.DefaultPageSize
	}
	return p
}

// Row is one rendered alert.
type Row struct {
	Name        string
	DetailURL   string
	EditURL     string
	Trigger     string
	Description string
	Type        string
	Enabled     bool
}

// View is everything the template needs to render the page.
type View struct {
	State        State
	Title        string
	Subtitle     string
	AddLabel     string
	AddURL       string
	Breadcrumb   template.HTML
	NameLabel    string
	TriggerLabel string
	DescLabel    string
	ActionsLabel string
	EditLabel    string
	DeleteLabel  string
	Rows         []Row
	Total        int
	TotalLabel   string
	EmptyMessage string
	ErrorMessage string
	// BadRequest marks an error caused by the request itself, such as a
	// malformed paging cursor, rather than by the alerts source.
	BadRequest bool
	PrevURL      string
	PrevLabel    string
	NextURL      string
	NextLabel    string
}

// Load fetches the first page (or the page selected by the cursors in
// params) and builds the view. It issues exactly one fetch.
func (p *NotificationListPage) Load(ctx context.Context, tr i18n.Translator, params domain.ListParams) *View {
	if params.Limit <= 0 {
		params.Limit = p.pageSize
	}

	alertLabel := tr.T("label.alert")
	v := &View{
		State:        StateLoading,
		Title:        tr.T("label.notification-plural"),
		Subtitle:     tr.T("message.alerts-description"),
		AddLabel:     tr.T("label.add-entity", alertLabel),
		AddURL:       settings.AddNotificationPath,
		Breadcrumb:   p.components.TitleBreadcrumb(p.breadcrumb(tr)),
		NameLabel:    tr.T("label.name"),
		TriggerLabel: tr.T("label.trigger"),
		DescLabel:    tr.T("label.description"),
		ActionsLabel: tr.T("label.action-plural"),
		EditLabel:    tr.T("label.edit"),
		DeleteLabel:  tr.T("label.delete"),
		PrevLabel:    tr.T("label.previous"),
		NextLabel:    tr.T("label.next"),
	}

	list, err := p.alerts.GetAllAlerts(ctx, params)
	if err == nil && list == nil {
		list = &domain.AlertList{}
	}
	if err != nil {
		v.BadRequest = errors.Is(err, domain.ErrInvalidCursor)
		if v.BadRequest {
			p.logger.Warn("rejected paging cursor", "error", err)
		} else {
			p.logger.Error("failed to fetch alerts", "error", err)
		}
		v.State = StateError
		v.ErrorMessage = tr.T("server.entity-fetch-error", tr.T("label.alert-plural"))
		return v
	}

	v.Total = list.Paging.Total
	v.TotalLabel = tr.T("label.total-entity", tr.T("label.alert-plural"), list.Paging.Total)
	if list.Paging.Before != "" {
		v.PrevURL = settings.NotificationsListPath + "?before=" + url.QueryEscape(list.Paging.Before)
	}
	if list.Paging.After != "" {
		v.NextURL = settings.NotificationsListPath + "?after=" + url.QueryEscape(list.Paging.After)
	}

	if len(list.Data) == 0 {
		v.State = StateEmpty
		v.EmptyMessage = tr.T("label.no-entity", tr.T("label.alert-plural"))
		return v
	}

	v.State = StatePopulated
	v.Rows = make([]Row, 0, len(list.Data))
	for _, a := range list.Data {
		fqn := a.FullyQualifiedName
		if fqn == "" {
			fqn = a.Name
		}
		v.Rows = append(v.Rows, Row{
			Name:        a.DisplayName(),
			DetailURL:   settings.NotificationURL(fqn),
			EditURL:     settings.EditNotificationURL(fqn),
			Trigger:     strings.Join(a.FilteringRules.Resources, ", "),
			Description: a.Description,
			Type:        string(a.SubscriptionType),
			Enabled:     a.Enabled,
		})
	}
	return v
}

var contentTmpl = template.Must(template.New("notification-list").Parse(`
{{.Breadcrumb}}
<header class="page-header">
  <h4 data-testid="page-title">{{.Title}}</h4>
  <p data-testid="page-sub-header">{{.Subtitle}}</p>
  <a class="btn btn-primary" href="{{.AddURL}}" data-testid="create-notification">{{.AddLabel}}</a>
</header>
{{- if eq .State "error"}}
<div class="error-placeholder" data-testid="fetch-error">{{.ErrorMessage}}</div>
{{- else}}
<table class="alerts-table" data-testid="alerts-table">
  <thead>
    <tr><th>{{.NameLabel}}</th><th>{{.TriggerLabel}}</th><th>{{.DescLabel}}</th><th>{{.ActionsLabel}}</th></tr>
  </thead>
  {{- if .Rows}}
  <tbody>
    {{- range .Rows}}
    <tr data-testid="alert-row">
      <td><a href="{{.DetailURL}}" data-testid="alert-name">{{.Name}}</a></td>
      <td data-testid="alert-trigger">{{.Trigger}}</td>
      <td data-testid="alert-description">{{.Description}}</td>
      <td>
        <a href="{{.EditURL}}" data-testid="alert-edit-{{.Name}}">{{$.EditLabel}}</a>
        <button type="button" data-testid="alert-delete-{{.Name}}">{{$.DeleteLabel}}</button>
      </td>
    </tr>
    {{- end}}
  </tbody>
  {{- end}}
</table>
{{- if eq .State "empty"}}
<div class="no-data-placeholder" data-testid="no-data">{{.EmptyMessage}}</div>
{{- end}}
{{- if or .PrevURL .NextURL}}
<nav class="pagination" data-testid="pagination">
  <span data-testid="total-count">{{.TotalLabel}}</span>
  {{- if .PrevURL}}<a href="{{.PrevURL}}" data-testid="previous-page">{{.PrevLabel}}</a>{{end}}
  {{- if .NextURL}}<a href="{{.NextURL}}" data-testid="next-page">{{.NextLabel}}</a>{{end}}
</nav>
{{- end}}
{{- end}}
`))

// Render writes the page for v.
func (p *NotificationListPage) Render(w io.Writer, v *View) error {
	var buf bytes.Buffer
	if err := contentTmpl.Execute(&buf, v); err != nil {
		return err
	}
	_, err := io.WriteString(w, string(p.components.Layout(v.Title, template.HTML(buf.String()))))
	return err
}

func (p *NotificationListPage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tr := p.translator(r.Header.Get("Accept-Language"))
	params := domain.ListParams{
		Limit:  p.pageSize,
		After:  r.URL.Query().Get("after"),
		Before: r.URL.Query().Get("before"),
	}

	v := p.Load(r.Context(), tr, params)
	if p.observer != nil {
		p.observer.ObservePageRender(pageName, string(v.State))
	}

	var buf bytes.Buffer
	if err := p.Render(&buf, v); err != nil {
		p.logger.Error("failed to render notification list page", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if v.State == StateError {
		status = http.StatusBadGateway
		if v.BadRequest {
			status = http.StatusBadRequest
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
