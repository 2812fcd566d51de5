package rendering

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
	"sync"

	"github.com/jonathan/cv-sync/internal/types"
)

//go:embed templates/*.html.tmpl
var templateFiles embed.FS

const baseTemplate = "base.html.tmpl"

var (
	parseOnce sync.Once
	parsed    map[types.PDFTemplate]*template.Template
	parseErr  error
)

// View is the data passed to every CV template.
type View struct {
	Doc      types.CVDocument
	FullName string
	Template types.PDFTemplate
	Format   types.PDFFormat
}

var funcs = template.FuncMap{
	"join":      strings.Join,
	"dateRange": dateRange,
	"label":     label,
}

// RenderHTML renders doc with the named template.
func RenderHTML(doc types.CVDocument, tmpl types.PDFTemplate, format types.PDFFormat) (string, error) {
	if !tmpl.Valid() {
		return "", &TemplateError{Template: string(tmpl), Message: "unknown template"}
	}
	if format == "" {
		format = types.FormatA4
	}

	templates, err := loadTemplates()
	if err != nil {
		return "", err
	}

	view := View{
		Doc:      doc.Normalize(),
		FullName: strings.TrimSpace(doc.PersonalInfo.FirstName + " " + doc.PersonalInfo.LastName),
		Template: tmpl,
		Format:   format,
	}

	var out strings.Builder
	if err := templates[tmpl].ExecuteTemplate(&out, baseTemplate, view); err != nil {
		return "", &TemplateError{Template: string(tmpl), Message: "failed to execute template", Cause: err}
	}
	return out.String(), nil
}

// loadTemplates parses every layout once; each layout overrides the "style" block of the base.
func loadTemplates() (map[types.PDFTemplate]*template.Template, error) {
	parseOnce.Do(func() {
		parsed = make(map[types.PDFTemplate]*template.Template)
		for _, name := range []types.PDFTemplate{types.TemplateModern, types.TemplateClassic, types.TemplateMinimal} {
			t, err := template.New(baseTemplate).Funcs(funcs).ParseFS(templateFiles,
				"templates/"+baseTemplate,
				fmt.Sprintf("templates/%s.html.tmpl", name),
			)
			if err != nil {
				parseErr = &TemplateError{Template: string(name), Message: "failed to parse template", Cause: err}
				return
			}
			parsed[name] = t
		}
	})
	return parsed, parseErr
}

func dateRange(start, end string, current bool) string {
	switch {
	case current && start != "":
		return start + " – Present"
	case current:
		return "Present"
	case start != "" && end != "":
		return start + " – " + end
	case start != "":
		return start
	default:
		return end
	}
}

// label capitalizes enum values such as skill levels.
func label(v any) string {
	s := fmt.Sprint(v)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
