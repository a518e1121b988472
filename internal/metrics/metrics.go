// Package metrics counts analysis outcomes and exports them in the Prometheus
// text format, for collection through a node-exporter textfile directory.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stepguard/stepguard/pkg/riskengine"
)

// Recorder holds the counters of one stepguard invocation. It is safe for
// concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	workflows *prometheus.CounterVec
	rejected  prometheus.Counter
	steps     *prometheus.CounterVec
	findings  *prometheus.CounterVec
	approvals *prometheus.CounterVec
	duration  prometheus.Histogram
}

// NewRecorder registers the stepguard metrics on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Recorder{
		registry: reg,
		workflows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stepguard_workflows_analyzed_total",
			Help: "Workflows analysed, by overall risk level",
		}, []string{"risk_level"}),
		rejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "stepguard_workflows_rejected_total",
			Help: "Workflow documents rejected before analysis",
		}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stepguard_steps_analyzed_total",
			Help: "Steps analysed, by risk level",
		}, []string{"risk_level"}),
		findings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stepguard_findings_total",
			Help: "Signals detected in steps, by category",
		}, []string{"category"}),
		approvals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stepguard_approvals_required_total",
			Help: "Workflow-level approval requirements, by approval type",
		}, []string{"approval_type"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stepguard_workflow_analysis_duration_seconds",
			Help:    "Time to analyse one workflow",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1},
		}),
	}

	// Export every category and approval type, so absent signals read as 0.
	for _, c := range riskengine.Categories() {
		r.findings.WithLabelValues(string(c))
	}
	for _, t := range riskengine.ApprovalTypes() {
		r.approvals.WithLabelValues(string(t))
	}
	return r
}

// ObserveWorkflow records the outcome of analysing one workflow.
func (r *Recorder) ObserveWorkflow(analysis riskengine.WorkflowAnalysis, elapsed time.Duration) {
	r.workflows.WithLabelValues(analysis.Summary.RiskLevel.String()).Inc()
	for _, step := range analysis.Steps {
		r.steps.WithLabelValues(step.RiskLevel.String()).Inc()
		for _, f := range step.Findings {
			r.findings.WithLabelValues(string(f.Category)).Inc()
		}
	}
	for _, a := range analysis.Summary.Approvals {
		r.approvals.WithLabelValues(string(a.Type)).Inc()
	}
	r.duration.Observe(elapsed.Seconds())
}

// ObserveRejected records a workflow document that failed to load or validate.
func (r *Recorder) ObserveRejected() {
	r.rejected.Inc()
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %q: %w", path, err)
	}
	return nil
}
