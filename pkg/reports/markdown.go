package reports

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

var markdownTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"join":  strings.Join,
	"trim":  strings.TrimSpace,
	"value": displayValue,
}).Parse("# Hatch Plugin Run Report\n" +
	"\n" +
	"- Generated: `{{.GeneratedAt}}`\n" +
	"- Run ID: `{{.RunID}}`\n" +
	"- Plugin: `{{.Plugin.Name}}`\n" +
	"- Version: `{{value .Plugin.Version}}`\n" +
	"- Author: `{{value .Plugin.Author}}`\n" +
	"- Network policy: `{{value .Plugin.NetworkPolicy}}`\n" +
	"- Runner: `{{.Execution.Runner}}`\n" +
	"- Mode: `{{.Execution.Mode}}`\n" +
	"- Phases: `{{join .Execution.Phases \",\"}}`\n" +
	"- Return code: `{{.Execution.ReturnCode}}`\n" +
	"- Timed out: `{{.Execution.TimedOut}}`\n" +
	"- Duration (sec): `{{.Execution.DurationSec}}`\n" +
	"- Command: `{{join .Execution.Command \" \"}}`\n" +
	"\n" +
	"## Stdout\n" +
	"```text\n" +
	"{{trim .Output.Stdout}}\n" +
	"```\n" +
	"\n" +
	"## Stderr\n" +
	"```text\n" +
	"{{trim .Output.Stderr}}\n" +
	"```\n"))

// RenderMarkdown renders the human-readable form of report
func RenderMarkdown(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdownTemplate.Execute(&buf, report); err != nil {
		return nil, fmt.Errorf("failed to render markdown report: %w", err)
	}
	return buf.Bytes(), nil
}

func displayValue(v any) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprint(v)
}
