package rendering

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/cv-sync/internal/types"
)

// PlainText extracts a readable text version of rendered CV HTML: one line per
// heading, paragraph or list item, with section headings upper-cased.
func PlainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", &TemplateError{Template: "preview", Message: "failed to parse HTML", Cause: err}
	}
	doc.Find("script, style, head").Remove()

	var lines []string
	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		switch name {
		case "h1", "h2", "p", "li":
		default:
			return
		}
		// list items holding paragraphs are emitted through their children
		if name == "li" && s.ChildrenFiltered("p, ul").Length() > 0 {
			return
		}
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" {
			return
		}
		switch name {
		case "h2":
			lines = append(lines, "", strings.ToUpper(text))
		case "li":
			lines = append(lines, "- "+text)
		default:
			lines = append(lines, text)
		}
	})
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// Preview renders doc with tmpl and returns its plain-text form.
func Preview(doc types.CVDocument, tmpl types.PDFTemplate) (string, error) {
	if tmpl == "" {
		tmpl = types.DefaultTemplate
	}
	html, err := RenderHTML(doc, tmpl, types.FormatA4)
	if err != nil {
		return "", err
	}
	return PlainText(html)
}
