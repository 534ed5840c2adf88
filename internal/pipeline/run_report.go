package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"apisurface/internal/analysis"
)

const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

type Signal struct {
	Code     string  `json:"code"`
	Stage    string  `json:"stage"`
	Severity string  `json:"severity"`
	Message  string  `json:"message"`
	Value    float64 `json:"value,omitempty"`
}

type StageMetric struct {
	Name       string             `json:"name"`
	Status     string             `json:"status"`
	StartedAt  string             `json:"started_at"`
	FinishedAt string             `json:"finished_at"`
	DurationMS int64              `json:"duration_ms"`
	Counters   map[string]float64 `json:"counters,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type RunSummary struct {
	StageCount         int            `json:"stage_count"`
	FailedStages       int            `json:"failed_stages"`
	Added              int            `json:"added"`
	Removed            int            `json:"removed"`
	NullabilityChanges int            `json:"nullability_changes"`
	AddedByKind        map[string]int `json:"added_by_kind,omitempty"`
	RemovedByKind      map[string]int `json:"removed_by_kind,omitempty"`
	SignalsBySeverity  map[string]int `json:"signals_by_severity"`
}

// RunReport records the stages of a Generate run. All methods accept a nil
// receiver so callers that do not want a report pass nothing.
type RunReport struct {
	Version     string        `json:"version"`
	Mode        string        `json:"mode"`
	GeneratedAt string        `json:"generated_at"`
	Target      string        `json:"target"`
	Stages      []StageMetric `json:"stages"`
	Signals     []Signal      `json:"signals,omitempty"`
	Summary     RunSummary    `json:"summary"`

	changes *analysis.ChangeReport
}

type stageHandle struct {
	name    string
	started time.Time
}

func NewRunReport(mode, target string) *RunReport {
	return &RunReport{
		Version:     "v1",
		Mode:        mode,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Target:      target,
		Stages:      []StageMetric{},
		Signals:     []Signal{},
	}
}

func (r *RunReport) beginStage(name string) stageHandle {
	return stageHandle{name: name, started: time.Now().UTC()}
}

func (r *RunReport) endStage(h stageHandle, counters map[string]float64, err error) {
	if r == nil {
		return
	}
	finished := time.Now().UTC()
	m := StageMetric{
		Name:       h.name,
		Status:     "ok",
		StartedAt:  h.started.Format(time.RFC3339Nano),
		FinishedAt: finished.Format(time.RFC3339Nano),
		DurationMS: finished.Sub(h.started).Milliseconds(),
		Counters:   cleanCounters(counters),
	}
	if err != nil {
		m.Status = "error"
		m.Error = err.Error()
	}
	r.Stages = append(r.Stages, m)
}

func (r *RunReport) addSignal(code, stage, severity, message string, value float64) {
	if r == nil {
		return
	}
	r.Signals = append(r.Signals, Signal{
		Code:     code,
		Stage:    stage,
		Severity: severity,
		Message:  message,
		Value:    value,
	})
}

// recordChanges attaches the delta summary and raises the matching signals.
func (r *RunReport) recordChanges(stage string, changes *analysis.ChangeReport) {
	if r == nil {
		return
	}
	r.changes = changes
	if n := len(changes.Removed); n > 0 {
		r.addSignal("api_removed", stage, SeverityWarning, "Shipped APIs are no longer present.", float64(n))
	}
	if n := len(changes.Nullable); n > 0 {
		r.addSignal("nullability_changed", stage, SeverityInfo, "APIs changed only in nullability annotations.", float64(n))
	}
}

func (r *RunReport) Finalize() {
	if r == nil {
		return
	}
	r.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	sort.SliceStable(r.Signals, func(i, j int) bool {
		pi := signalPriority(r.Signals[i].Severity)
		pj := signalPriority(r.Signals[j].Severity)
		if pi == pj {
			if r.Signals[i].Stage == r.Signals[j].Stage {
				return r.Signals[i].Code < r.Signals[j].Code
			}
			return r.Signals[i].Stage < r.Signals[j].Stage
		}
		return pi > pj
	})

	severityCount := map[string]int{
		SeverityCritical: 0,
		SeverityWarning:  0,
		SeverityInfo:     0,
	}
	for _, s := range r.Signals {
		severityCount[s.Severity]++
	}

	failed := 0
	for _, st := range r.Stages {
		if st.Status != "ok" {
			failed++
		}
	}

	r.Summary = RunSummary{
		StageCount:        len(r.Stages),
		FailedStages:      failed,
		SignalsBySeverity: severityCount,
	}
	if c := r.changes; c != nil {
		r.Summary.Added = len(c.Added)
		r.Summary.Removed = len(c.Removed)
		r.Summary.NullabilityChanges = len(c.Nullable)
		r.Summary.AddedByKind = kindCounts(c.Additions)
		r.Summary.RemovedByKind = kindCounts(c.Removals)
	}
}

func (r *RunReport) Save(path string) error {
	if r == nil {
		return nil
	}
	r.Finalize()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}

func kindCounts(raw map[analysis.Kind]int) map[string]int {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]int, len(raw))
	for k, v := range raw {
		out[string(k)] = v
	}
	return out
}

func cleanCounters(raw map[string]float64) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func signalPriority(severity string) int {
	switch severity {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	default:
		return 1
	}
}
