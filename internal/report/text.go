package report

import (
	"fmt"
	"io"
	"sync"
	gotemplate "text/template"

	"github.com/stepguard/stepguard/internal/template"
)

const textLayout = `Workflow {{ .AutomationID }}{{ with .Title }} - {{ . }}{{ end }}
{{- with .Source }}
Source:    {{ . }}
{{- end }}
Generated: {{ formatDateTime .GeneratedAt }}

Overall risk:   {{ upper .Summary.RiskLevel.String }}
Steps analysed: {{ .Summary.TotalSteps }}
{{- with .Summary.ComplianceStandards }}
Compliance:     {{ join . ", " }}
{{- end }}
Counts:         pii={{ .Summary.Counts.PIIHandlingSteps }} db_write={{ .Summary.Counts.DatabaseWriteSteps }} payment={{ .Summary.Counts.PaymentProcessingSteps }} production={{ .Summary.Counts.ProductionAccessSteps }}

Steps:
{{- range $i, $s := .Steps }}
  {{ add $i 1 }}. [{{ upper $s.RiskLevel.String }}] {{ $s.StepID }}{{ with $s.StepName }} {{ . }}{{ end }}: {{ $s.RiskReason }}
{{- range $s.Findings }}
       - {{ .Category }} in {{ .SourceField }}: {{ .Evidence }}
{{- end }}
{{- end }}
{{- with .Summary.Approvals }}

Required approvals:
{{- range . }}
  - {{ .Type }} by {{ .ApproverRole }}{{ with .EstimatedTime }} ({{ . }}){{ end }}
      {{ .Reason }}
{{- end }}
{{- end }}
{{- with .Summary.Recommendations }}

Recommendations:
{{- range . }}
  - {{ . }}
{{- end }}
{{- end }}
`

var (
	textOnce sync.Once
	textTmpl *gotemplate.Template
	textErr  error
)

func writeText(w io.Writer, r *Report) error {
	textOnce.Do(func() {
		textTmpl, textErr = template.NewTemplate("report.txt", textLayout)
	})
	if textErr != nil {
		return fmt.Errorf("failed to parse text layout: %w", textErr)
	}
	if err := textTmpl.Execute(w, r); err != nil {
		return fmt.Errorf("failed to render text report: %w", err)
	}
	return nil
}
