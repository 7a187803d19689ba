package httpserver

import (
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/stockpulse/internal/inventory"
)

const (
	layoutTemplate = "layout.html"
	layoutPath     = "templates/layout.html"
	pagesGlob      = "templates/pages/*.html"
)

// templateSet maps a page name to the layout parsed together with that page.
// Pages define "title" and "content".
type templateSet map[string]*template.Template

func parseTemplates(fsys fs.FS, clock clockwork.Clock) (templateSet, error) {
	pages, err := fs.Glob(fsys, pagesGlob)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no templates match %s", pagesGlob)
	}

	set := make(templateSet, len(pages))
	for _, page := range pages {
		tmpl, err := template.New(layoutTemplate).Funcs(templateFuncs(clock)).ParseFS(fsys, layoutPath, page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		set[path.Base(page)] = tmpl
	}
	return set, nil
}

func templateFuncs(clock clockwork.Clock) template.FuncMap {
	return template.FuncMap{
		"addDays": func(date any, days int) *time.Time {
			d, ok := asDate(date)
			if !ok {
				return nil
			}
			next := inventory.AddDays(d, days)
			return &next
		},
		"daysUntil": func(date any) *int {
			d, ok := asDate(date)
			if !ok {
				return nil
			}
			days := inventory.DaysBetween(inventory.Today(clock), d)
			return &days
		},
		"fmtQty": func(v any) string {
			switch q := v.(type) {
			case float64:
				return inventory.FormatQuantity(q)
			case *float64:
				if q == nil {
					return "n/a"
				}
				return inventory.FormatQuantity(*q)
			}
			return fmt.Sprint(v)
		},
		"fmtDate": func(date any) string {
			d, ok := asDate(date)
			if !ok {
				return ""
			}
			return d.Format(dateLayout)
		},
		"deref": func(v *int) int {
			if v == nil {
				return 0
			}
			return *v
		},
		"neg": func(v int) int { return -v },
	}
}

const dateLayout = "2006-01-02"

func asDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, !d.IsZero()
	case *time.Time:
		if d == nil {
			return time.Time{}, false
		}
		return *d, true
	}
	return time.Time{}, false
}
