package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/bryanwahyu/profixion/internal/domain/audits"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(template.ParseFS(templateFS, "templates/report.html.tmpl"))

// RenderHTML produces the report page for in. It has no side effects and
// tolerates empty lists and a blank display name.
func RenderHTML(in audits.ReportInput) (string, error) {
	if strings.TrimSpace(in.DisplayName) == "" {
		in.DisplayName = in.Analysis.Name
	}
	if strings.TrimSpace(in.DisplayName) == "" {
		in.DisplayName = "Profile owner"
	}
	var buf bytes.Buffer
	if err := reportTemplate.ExecuteTemplate(&buf, "report.html.tmpl", in); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}
