// Package cli implements dashctl, the terminal client for the dashboard
// backend.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/google/uuid"

	"gitea.jw6.us/james/dashboard/internal/api"
	"gitea.jw6.us/james/dashboard/internal/auth"
	"gitea.jw6.us/james/dashboard/internal/dashboard"
	"gitea.jw6.us/james/dashboard/internal/pagination"
	"gitea.jw6.us/james/dashboard/internal/query"
	"gitea.jw6.us/james/dashboard/internal/validation"
)

// BaseURLEnvVar names the backend base URL setting.
const BaseURLEnvVar = "DASHBOARD_API_BASE_URL"

// Options configure a Run. Zero readers and writers mean the process's
// standard streams.
type Options struct {
	BaseURL string
	Tokens  *auth.FileTokenStore
	In      io.Reader
	Out     io.Writer
	Err     io.Writer

	// Browse runs the interactive browser; tests replace it.
	Browse func(ctx context.Context, svc *dashboard.Service) error
}

type runner struct {
	ctx context.Context
	opt Options
	in  *bufio.Reader
	svc *dashboard.Service
}

const authUsage = "usage: dashctl auth <login|logout|status|whoami>"

// Run executes one dashctl command and returns the process exit code.
func Run(ctx context.Context, args []string, opt Options) int {
	if opt.In == nil {
		opt.In = os.Stdin
	}
	if opt.Out == nil {
		opt.Out = os.Stdout
	}
	if opt.Err == nil {
		opt.Err = os.Stderr
	}
	if opt.Browse == nil {
		opt.Browse = runBrowser
	}
	r := &runner{ctx: ctx, opt: opt, in: bufio.NewReader(opt.In)}

	if len(args) == 0 {
		r.printHelp()
		return 2
	}
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		r.printHelp()
		return 0

	case "auth":
		if len(a) == 0 {
			r.fail(authUsage)
			return 2
		}
		switch a[0] {
		case "login":
			return r.doAuthLogin(a[1:])
		case "logout":
			return r.doAuthLogout()
		case "status":
			return r.doAuthStatus()
		case "whoami":
			return r.doAuthWhoAmI()
		}
		r.fail(authUsage)
		return 2

	case "items":
		if len(a) == 0 {
			r.fail("usage: dashctl items <ls|add|rm>")
			return 2
		}
		switch a[0] {
		case "ls":
			return r.doItemsList(a[1:])
		case "add":
			return r.doItemsAdd(a[1:])
		case "rm":
			return r.doItemsRemove(a[1:])
		}
		r.fail("usage: dashctl items <ls|add|rm>")
		return 2

	case "users":
		if len(a) == 0 || a[0] != "ls" {
			r.fail("usage: dashctl users ls")
			return 2
		}
		return r.doUsersList(a[1:])

	case "browse":
		return r.doBrowse()
	}

	r.fail("unknown subcommand: " + cmd)
	fmt.Fprintln(r.opt.Err)
	r.printHelp()
	return 2
}

func (r *runner) printHelp() {
	fmt.Fprint(r.opt.Out, `dashctl - dashboard terminal client

Usage:
  dashctl <subcommand> [args]

Subcommands:
  auth login [email]          Sign in and store the access token
  auth logout                 Forget the stored token
  auth status                 Show where the token comes from
  auth whoami                 Show the signed-in account
  items ls [-page N] [-page-size N]
  items add [-d description] <title...>
  items rm <id>
  users ls [-page N] [-page-size N]
  browse                      Page through items interactively

Environment:
  `+BaseURLEnvVar+`      Backend base URL (required)
  `+auth.TokenEnvVar+`             Token override
`)
}

// service builds the data service on first use so that commands which never
// reach the backend work without a base URL.
func (r *runner) service() (*dashboard.Service, bool) {
	if r.svc != nil {
		return r.svc, true
	}
	if strings.TrimSpace(r.opt.BaseURL) == "" {
		r.fail(BaseURLEnvVar + " is not set")
		return nil, false
	}
	client, err := api.New(r.opt.BaseURL)
	if err != nil {
		r.fail("api client: " + err.Error())
		return nil, false
	}
	r.svc = dashboard.NewService(client, r.opt.Tokens, query.New(query.Options{}))
	return r.svc, true
}

// failed reports err and returns the exit code for it.
func (r *runner) failed(err error, fallback string) int {
	switch {
	case errors.Is(err, api.ErrNotAuthenticated):
		r.fail("not logged in. Run: dashctl auth login")
		return 2
	case api.IsUnauthorized(err):
		r.fail("session expired. Run: dashctl auth login")
		return 2
	case api.IsForbidden(err):
		r.fail("access denied: " + api.ErrorMessage(err, "insufficient privileges"))
		return 1
	}
	r.fail(api.ErrorMessage(err, fallback))
	return 1
}

func (r *runner) prompt(label string) (string, error) {
	fmt.Fprint(r.opt.Out, label)
	line, err := r.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads without echo when input is a terminal.
func (r *runner) promptSecret(label string) (string, error) {
	if f, ok := r.opt.In.(*os.File); ok && term.IsTerminal(f.Fd()) {
		fmt.Fprint(r.opt.Out, label)
		b, err := term.ReadPassword(f.Fd())
		fmt.Fprintln(r.opt.Out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return r.prompt(label)
}

// Auth subcommands

type loginInput struct {
	Email    string `form:"email" label:"Email" validate:"required,email"`
	Password string `form:"password" label:"Password" validate:"required"`
}

func (r *runner) doAuthLogin(args []string) int {
	var in loginInput
	var err error
	if len(args) > 0 {
		in.Email = strings.TrimSpace(args[0])
	} else if in.Email, err = r.prompt("Email: "); err != nil {
		r.fail("read email: " + err.Error())
		return 1
	}
	if in.Password, err = r.promptSecret("Password: "); err != nil {
		r.fail("read password: " + err.Error())
		return 1
	}
	if err := validation.Struct(in); err != nil {
		r.fail(err.Error())
		return 2
	}

	svc, ok := r.service()
	if !ok {
		return 2
	}
	u, err := svc.Login(r.ctx, in.Email, in.Password)
	if err != nil {
		r.fail(api.ErrorMessage(err, "login failed"))
		return 1
	}
	if u == nil {
		r.ok("logged in")
		return 0
	}
	r.ok("logged in as " + u.DisplayName())
	return 0
}

func (r *runner) doAuthLogout() int {
	if r.opt.Tokens.Source() == auth.SourceEnv {
		r.ok("token is provided by " + auth.TokenEnvVar + " env var (nothing to delete)")
		return 0
	}
	if err := r.opt.Tokens.Clear(); err != nil {
		r.fail("logout: " + err.Error())
		return 1
	}
	r.ok("logged out")
	return 0
}

func (r *runner) doAuthStatus() int {
	src := r.opt.Tokens.Source()
	if src == auth.SourceNone {
		fmt.Fprintln(r.opt.Out, mutedStyle.Render("not logged in"))
		fmt.Fprintln(r.opt.Out, "Run: dashctl auth login")
		return 0
	}
	fmt.Fprintf(r.opt.Out, "source: %s\n", src)
	fmt.Fprintf(r.opt.Out, "env override: %s\n", auth.TokenEnvVar)
	return 0
}

func (r *runner) doAuthWhoAmI() int {
	svc, ok := r.service()
	if !ok {
		return 2
	}
	u, err := svc.CurrentUser(r.ctx)
	if err != nil {
		return r.failed(err, "could not load the current user")
	}
	role := "user"
	if u.IsSuperuser {
		role = "superuser"
	}
	status := successStyle.Render("active")
	if !u.IsActive {
		status = errorStyle.Render("inactive")
	}
	r.panel([]string{
		titleStyle.Render(u.DisplayName()),
		"email:  " + u.Email,
		"role:   " + accentStyle.Render(role),
		"status: " + status,
		"id:     " + mutedStyle.Render(u.ID.String()),
	})
	return 0
}

// Item and user subcommands

// windowFlags registers -page and -page-size on fs. Raw strings go through
// pagination.Derive so bad values fall back the same way URLs do.
func windowFlags(fs *flag.FlagSet) func() pagination.Window {
	page := fs.String("page", "", "page number (1-based)")
	size := fs.String("page-size", "", fmt.Sprintf("page size, one of %v", pagination.PageSizes))
	return func() pagination.Window { return pagination.Derive(*page, *size) }
}

func (r *runner) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(r.opt.Err)
	return fs
}

func (r *runner) doItemsList(args []string) int {
	fs := r.flagSet("items ls")
	window := windowFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	svc, ok := r.service()
	if !ok {
		return 2
	}
	win := window()
	page, err := svc.Items(r.ctx, win)
	if err == nil && win.Clamp(page.Count) != win {
		win = win.Clamp(page.Count)
		page, err = svc.Items(r.ctx, win)
	}
	if err != nil {
		return r.failed(err, "could not load items")
	}

	lines := []string{
		titleStyle.Render("Items") + "  " + pageSummary(win.Page, win.TotalPages(page.Count), page.Count, win.PageSize),
	}
	if len(page.Data) == 0 {
		lines = append(lines, mutedStyle.Render("No items yet"))
	}
	for _, it := range page.Data {
		line := mutedStyle.Render(it.ID.String()) + "  " + it.Title
		if it.Description != nil && *it.Description != "" {
			line += "  " + mutedStyle.Render(*it.Description)
		}
		lines = append(lines, line)
	}
	r.panel(lines)
	return 0
}

type itemInput struct {
	Title       string `form:"title" label:"Title" validate:"required,min=1,max=255"`
	Description string `form:"description" label:"Description" validate:"max=2000"`
}

func (r *runner) doItemsAdd(args []string) int {
	fs := r.flagSet("items add")
	desc := fs.String("d", "", "description")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	in := itemInput{
		Title:       strings.TrimSpace(strings.Join(fs.Args(), " ")),
		Description: strings.TrimSpace(*desc),
	}
	if in.Title == "" {
		r.fail("usage: dashctl items add [-d description] <title...>")
		return 2
	}
	if err := validation.Struct(in); err != nil {
		r.fail(err.Error())
		return 2
	}
	svc, ok := r.service()
	if !ok {
		return 2
	}
	create := api.ItemCreateInput{Title: in.Title}
	if in.Description != "" {
		create.Description = &in.Description
	}
	item, err := svc.CreateItem(r.ctx, create)
	if err != nil {
		return r.failed(err, "could not create item")
	}
	r.ok("added " + item.Title + " " + mutedStyle.Render("("+item.ID.String()+")"))
	return 0
}

func (r *runner) doItemsRemove(args []string) int {
	if len(args) != 1 {
		r.fail("usage: dashctl items rm <id>")
		return 2
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		r.fail("rm: not an item id: " + args[0])
		return 2
	}
	svc, ok := r.service()
	if !ok {
		return 2
	}
	msg, err := svc.DeleteItem(r.ctx, id)
	if err != nil {
		return r.failed(err, "could not delete item")
	}
	r.ok(msg.Message)
	return 0
}

func (r *runner) doUsersList(args []string) int {
	fs := r.flagSet("users ls")
	window := windowFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	svc, ok := r.service()
	if !ok {
		return 2
	}
	win := window()
	page, err := svc.Users(r.ctx, win)
	if err == nil && win.Clamp(page.Count) != win {
		win = win.Clamp(page.Count)
		page, err = svc.Users(r.ctx, win)
	}
	if err != nil {
		return r.failed(err, "could not load users")
	}

	lines := []string{
		titleStyle.Render("Users") + "  " + pageSummary(win.Page, win.TotalPages(page.Count), page.Count, win.PageSize),
	}
	if len(page.Data) == 0 {
		lines = append(lines, mutedStyle.Render("No users found"))
	}
	for _, u := range page.Data {
		line := u.Email
		if u.FullName != nil && *u.FullName != "" {
			line += "  " + *u.FullName
		}
		if u.IsSuperuser {
			line += "  " + accentStyle.Render("superuser")
		}
		if !u.IsActive {
			line += "  " + errorStyle.Render("inactive")
		}
		lines = append(lines, line)
	}
	r.panel(lines)
	return 0
}

func (r *runner) doBrowse() int {
	svc, ok := r.service()
	if !ok {
		return 2
	}
	if _, signedIn := r.opt.Tokens.Token(); !signedIn {
		return r.failed(api.ErrNotAuthenticated, "")
	}
	if err := r.opt.Browse(r.ctx, svc); err != nil {
		r.fail("browse: " + err.Error())
		return 1
	}
	return 0
}
