package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"gitea.jw6.us/james/dashboard/internal/api"
	"gitea.jw6.us/james/dashboard/internal/dashboard"
	"gitea.jw6.us/james/dashboard/internal/pagination"
	"gitea.jw6.us/james/dashboard/internal/query"
)

// itemRow adapts api.Item to bubbles/list.Item.
type itemRow struct {
	item api.Item
}

func (i itemRow) Title() string { return i.item.Title }

func (i itemRow) Description() string {
	if i.item.Description == nil {
		return ""
	}
	return *i.item.Description
}

func (i itemRow) FilterValue() string { return i.item.Title }

// rowDelegate renders one item per line.
type rowDelegate struct{}

func (d rowDelegate) Height() int                               { return 1 }
func (d rowDelegate) Spacing() int                              { return 0 }
func (d rowDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d rowDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	row, _ := item.(itemRow)
	line := row.Title()
	if desc := row.Description(); desc != "" {
		line += "  " + mutedStyle.Render(desc)
	}
	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintln(w, prefix+line)
}

type browseKeys struct {
	Prev    key.Binding
	Next    key.Binding
	Size    key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

func newBrowseKeys() browseKeys {
	return browseKeys{
		Prev:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "prev page")),
		Next:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next page")),
		Size:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "page size")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Quit:    key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k browseKeys) bindings() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Size, k.Refresh, k.Quit}
}

// pageMsg carries the result of loading one window.
type pageMsg struct {
	win  pagination.Window
	page *api.Page[api.Item]
	err  error
}

type browseModel struct {
	ctx  context.Context
	svc  *dashboard.Service
	keys browseKeys
	list list.Model

	win     pagination.Window
	count   int
	loading bool
	err     error
}

func newBrowseModel(ctx context.Context, svc *dashboard.Service) browseModel {
	keys := newBrowseKeys()
	l := list.New(nil, rowDelegate{}, 76, 19)
	l.Title = "Items"
	l.Styles.Title = titleStyle
	l.Styles.HelpStyle = helpStyle
	l.SetShowStatusBar(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(false)
	l.KeyMap.NextPage.SetEnabled(false)
	l.KeyMap.PrevPage.SetEnabled(false)
	l.KeyMap.Quit.SetEnabled(false)
	l.AdditionalShortHelpKeys = keys.bindings
	l.AdditionalFullHelpKeys = keys.bindings

	return browseModel{
		ctx:     ctx,
		svc:     svc,
		keys:    keys,
		list:    l,
		win:     pagination.Default(),
		loading: true,
	}
}

// runBrowser starts the full-screen item browser.
func runBrowser(ctx context.Context, svc *dashboard.Service) error {
	p := tea.NewProgram(newBrowseModel(ctx, svc), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// load fetches win, moving back to the last page when win lies past the end.
func (m browseModel) load(win pagination.Window) tea.Cmd {
	ctx, svc := m.ctx, m.svc
	return func() tea.Msg {
		page, err := svc.Items(ctx, win)
		if err == nil && win.Clamp(page.Count) != win {
			win = win.Clamp(page.Count)
			page, err = svc.Items(ctx, win)
		}
		return pageMsg{win: win, page: page, err: err}
	}
}

func (m browseModel) Init() tea.Cmd { return m.load(m.win) }

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case pageMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.win = msg.win
		m.count = msg.page.Count
		rows := make([]list.Item, 0, len(msg.page.Data))
		for _, it := range msg.page.Data {
			rows = append(rows, itemRow{item: it})
		}
		cmd := m.list.SetItems(rows)
		m.list.Select(0)
		return m, cmd

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width-4, msg.Height-5)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case m.loading:
			return m, nil
		case key.Matches(msg, m.keys.Prev):
			if !m.win.HasPrev() {
				return m, nil
			}
			return m.fetch(m.win.SetPage(m.win.Page - 1))
		case key.Matches(msg, m.keys.Next):
			if !m.win.HasNext(m.count) {
				return m, nil
			}
			return m.fetch(m.win.SetPage(m.win.Page + 1))
		case key.Matches(msg, m.keys.Size):
			return m.fetch(m.win.NextPageSize())
		case key.Matches(msg, m.keys.Refresh):
			m.svc.Cache().Invalidate(query.NewKey(dashboard.ResourceItems))
			return m.fetch(m.win)
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m browseModel) fetch(win pagination.Window) (tea.Model, tea.Cmd) {
	m.loading = true
	return m, m.load(win)
}

func (m browseModel) View() string {
	var b strings.Builder
	b.WriteString(pageSummary(m.win.Page, m.win.TotalPages(m.count), m.count, m.win.PageSize))
	b.WriteString("\n")
	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(api.ErrorMessage(m.err, "could not load items")))
		b.WriteString("\n")
	case m.loading:
		b.WriteString(mutedStyle.Render("loading…"))
		b.WriteString("\n")
	case m.count == 0:
		b.WriteString(mutedStyle.Render("No items yet"))
		b.WriteString("\n")
	}
	b.WriteString(m.list.View())
	return panelString(b.String())
}
