package cli

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"gitea.jw6.us/james/dashboard/internal/api"
	"gitea.jw6.us/james/dashboard/internal/dashboard"
	"gitea.jw6.us/james/dashboard/internal/query"
)

func newTestBrowser(t *testing.T, items int) (browseModel, *backend) {
	t.Helper()
	h := newHarness(t)
	h.signIn(t)
	h.backend.seed(items)
	client, err := api.New(h.baseURL)
	if err != nil {
		t.Fatal(err)
	}
	svc := dashboard.NewService(client, h.tokens, query.New(query.Options{}))
	return newBrowseModel(context.Background(), svc), h.backend
}

// step feeds msg to m and runs the resulting command to completion.
func step(t *testing.T, m browseModel, msg tea.Msg) browseModel {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(browseModel)
	if cmd == nil {
		return m
	}
	if page, ok := cmd().(pageMsg); ok {
		next, _ = m.Update(page)
		m = next.(browseModel)
	}
	return m
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func TestBrowsePaging(t *testing.T) {
	m, _ := newTestBrowser(t, 12)

	m = step(t, m, m.Init()().(pageMsg))
	if m.loading || m.err != nil {
		t.Fatalf("after init loading=%v err=%v", m.loading, m.err)
	}
	if m.count != 12 || len(m.list.Items()) != 5 {
		t.Fatalf("count=%d rows=%d", m.count, len(m.list.Items()))
	}

	m = step(t, m, keyMsg("right"))
	m = step(t, m, keyMsg("right"))
	if m.win.Page != 3 || len(m.list.Items()) != 2 {
		t.Errorf("page=%d rows=%d, want 3 and 2", m.win.Page, len(m.list.Items()))
	}
	// No page after the last one.
	if _, cmd := m.Update(keyMsg("right")); cmd != nil {
		t.Error("right on the last page started a load")
	}

	m = step(t, m, keyMsg("left"))
	if m.win.Page != 2 {
		t.Errorf("page after left = %d", m.win.Page)
	}

	// Changing the size always returns to page 1.
	m = step(t, m, keyMsg("s"))
	if m.win.Page != 1 || m.win.PageSize != 10 || len(m.list.Items()) != 10 {
		t.Errorf("after s: %+v rows=%d", m.win, len(m.list.Items()))
	}
	if _, cmd := m.Update(keyMsg("left")); cmd != nil {
		t.Error("left on the first page started a load")
	}

	if !strings.Contains(m.View(), "page 1/2 · 12 total · 10 per page") {
		t.Errorf("view header missing: %q", m.View())
	}
}

func TestBrowseRefreshRefetches(t *testing.T) {
	m, b := newTestBrowser(t, 3)
	m = step(t, m, m.Init()().(pageMsg))

	b.mu.Lock()
	before := b.lists
	b.mu.Unlock()

	m = step(t, m, keyMsg("r"))

	b.mu.Lock()
	after := b.lists
	b.mu.Unlock()
	if after != before+1 {
		t.Errorf("refresh made %d list calls, want 1", after-before)
	}
	if m.count != 3 {
		t.Errorf("count = %d", m.count)
	}
}

func TestBrowseEmptyAndErrors(t *testing.T) {
	m, _ := newTestBrowser(t, 0)
	m = step(t, m, m.Init()().(pageMsg))
	if !strings.Contains(m.View(), "No items yet") {
		t.Errorf("empty view = %q", m.View())
	}

	if err := m.svc.Tokens().SetToken("stale"); err != nil {
		t.Fatal(err)
	}
	m = step(t, m, keyMsg("r"))
	if !api.IsUnauthorized(m.err) || !strings.Contains(m.View(), "Could not validate credentials") {
		t.Errorf("err = %v, view = %q", m.err, m.View())
	}

	if _, cmd := m.Update(keyMsg("q")); cmd == nil {
		t.Error("q did not quit")
	}
}

func TestBrowseIgnoresKeysWhileLoading(t *testing.T) {
	m, _ := newTestBrowser(t, 12)
	if !m.loading {
		t.Fatal("new model should start loading")
	}
	if _, cmd := m.Update(keyMsg("s")); cmd != nil {
		t.Error("s while loading started a load")
	}
}
