package ui

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"time"

	"gitea.jw6.us/james/dashboard/internal/api"
)

//go:embed templates/*
var templateFS embed.FS

var templates = mustParseTemplates()

var funcMap = template.FuncMap{
	"formatTime": func(t interface{}) string {
		switch v := t.(type) {
		case nil:
			return ""
		case api.Timestamp:
			if v.IsZero() {
				return ""
			}
			return v.UTC().Format("2006-01-02 15:04")
		case time.Time:
			if v.IsZero() {
				return ""
			}
			return v.UTC().Format(time.RFC3339)
		case *time.Time:
			if v == nil {
				return ""
			}
			return v.UTC().Format(time.RFC3339)
		}
		return ""
	},
	// deref prints an optional string, or "—" when it is unset.
	"deref": func(s *string) string {
		if s == nil || *s == "" {
			return "—"
		}
		return *s
	},
	"value": derefString,
}

func mustParseTemplates() map[string]*template.Template {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(err)
	}
	pages, err := parsePages(sub)
	if err != nil {
		panic(err)
	}
	return pages
}

// parsePages builds one set per page: base.html cloned, plus the page's own
// "content" block. Sets are keyed by the page file name.
func parsePages(fsys fs.FS) (map[string]*template.Template, error) {
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(fsys, "base.html")
	if err != nil {
		return nil, err
	}
	files, err := fs.Glob(fsys, "*.html")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		if file == "base.html" {
			continue
		}
		set, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := set.ParseFS(fsys, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		if set.Lookup("content") == nil {
			return nil, fmt.Errorf("%s does not define a content block", file)
		}
		pages[file] = set
	}
	return pages, nil
}
