package httpserver

import (
	"bytes"
	"html/template"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/stockpulse/web"
)

func TestParseTemplates_EveryPage(t *testing.T) {
	set, err := parseTemplates(web.TemplateFiles, clockwork.NewFakeClockAt(testNow))
	require.NoError(t, err)

	for _, page := range []string{
		"login.html",
		"signup.html",
		"error.html",
		"material_list.html",
		"material_form.html",
		"material_confirm_delete.html",
		"log_operation_form.html",
		"material_history.html",
		"analytics_report.html",
		"forecast.html",
		"categories.html",
		"settings.html",
	} {
		assert.Contains(t, set, page)
	}
}

func TestParseTemplates_NoPages(t *testing.T) {
	fsys := fstest.MapFS{
		"templates/layout.html": {Data: []byte(`{{template "content" .}}`)},
	}

	_, err := parseTemplates(fsys, clockwork.NewFakeClock())
	assert.Error(t, err)
}

func TestParseTemplates_PagesAreIsolated(t *testing.T) {
	fsys := fstest.MapFS{
		"templates/layout.html":  {Data: []byte(`[{{template "title" .}}] {{template "content" .}}`)},
		"templates/pages/a.html": {Data: []byte(`{{define "title"}}A{{end}}{{define "content"}}page a{{end}}`)},
		"templates/pages/b.html": {Data: []byte(`{{define "title"}}B{{end}}{{define "content"}}page b{{end}}`)},
	}

	set, err := parseTemplates(fsys, clockwork.NewFakeClock())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, set["a.html"].ExecuteTemplate(&buf, layoutTemplate, nil))
	assert.Equal(t, "[A] page a", buf.String())

	buf.Reset()
	require.NoError(t, set["b.html"].ExecuteTemplate(&buf, layoutTemplate, nil))
	assert.Equal(t, "[B] page b", buf.String())
}

func render(t *testing.T, funcs template.FuncMap, text string, data any) string {
	t.Helper()
	tmpl := template.Must(template.New("t").Funcs(funcs).Parse(text))
	var buf bytes.Buffer
	require.NoError(t, tmpl.Execute(&buf, data))
	return buf.String()
}

func TestTemplateFuncs(t *testing.T) {
	funcs := templateFuncs(clockwork.NewFakeClockAt(testNow))
	expiry := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	turnover := 2.0 / 3.0
	days := -4

	tests := []struct {
		name string
		text string
		data any
		want string
	}{
		{"fmtQty float", `{{fmtQty .}}`, 12.5, "12.5"},
		{"fmtQty whole", `{{fmtQty .}}`, 10.0, "10"},
		{"fmtQty pointer", `{{fmtQty .}}`, &turnover, "0.667"},
		{"fmtQty nil pointer", `{{fmtQty .}}`, (*float64)(nil), "n/a"},
		{"fmtDate value", `{{fmtDate .}}`, expiry, "2026-03-20"},
		{"fmtDate pointer", `{{fmtDate .}}`, &expiry, "2026-03-20"},
		{"fmtDate nil", `{{fmtDate .}}`, (*time.Time)(nil), ""},
		{"daysUntil", `{{deref (daysUntil .)}}`, expiry, "10"},
		{"addDays", `{{fmtDate (addDays . 30)}}`, expiry, "2026-04-19"},
		{"neg deref", `{{neg (deref .)}}`, &days, "4"},
		{"deref nil", `{{deref .}}`, (*int)(nil), "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, funcs, tt.text, tt.data))
		})
	}
}
