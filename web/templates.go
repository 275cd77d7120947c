package web

import (
	"embed"
	"html/template"
	"net/url"
	"time"

	"arxiv-frontend/services"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"date":       formatDate,
	"add":        func(a, b int) int { return a + b },
	"sub":        func(a, b int) int { return a - b },
	"pathEscape": url.PathEscape,
	"cleanID":    services.CleanArxivID,
	"weeks":      weeks,
}

func loadTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format(services.DateLayout)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format(services.DateLayout)
	}
	return ""
}

// weeks teilt die Zellen eines Monats in Zeilen zu sieben Tagen.
func weeks(days []services.CalendarDay) [][]services.CalendarDay {
	var out [][]services.CalendarDay
	for len(days) > 0 {
		n := min(7, len(days))
		out = append(out, days[:n])
		days = days[n:]
	}
	return out
}
