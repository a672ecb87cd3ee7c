package render

import (
	"embed"
	"html/template"
	"io"
	"strings"
)

//go:embed templates/page.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/page.html"))

// PageData is the input to the HTML page. Zip, Warm and Cold are the raw form values and
// are echoed back escaped. A nil Display renders the empty form.
type PageData struct {
	Zip         string
	Warm        string
	Cold        string
	DefaultWarm string
	DefaultCold string
	Display     *Display
}

// Page writes the HTML page to w.
func Page(w io.Writer, data PageData) error {
	return pageTemplate.Execute(w, data)
}

// Text renders d as plain text: the headline followed by one line per detail.
func Text(d Display) string {
	var b strings.Builder
	b.WriteString(d.Headline)
	b.WriteByte('\n')
	for _, line := range d.Lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
