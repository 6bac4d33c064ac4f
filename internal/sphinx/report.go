package sphinx

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// BuildOutcome is the typed enumeration of final build result states.
type BuildOutcome string

const (
	OutcomeSuccess  BuildOutcome = "success"
	OutcomeWarning  BuildOutcome = "warning"
	OutcomeFailed   BuildOutcome = "failed"
	OutcomeCanceled BuildOutcome = "canceled"
)

// BuildReport captures high-level metrics about a configuration build run.
type BuildReport struct {
	SchemaVersion int
	Project       string
	Hosted        bool
	HostedVar     string // env var that drove hosted detection
	SourceCommit  string // abbreviated HEAD of a fetched checkout, if any
	Headers       int
	Pages         int
	Overrides     int
	Start         time.Time
	End           time.Time
	Errors        []error // fatal errors causing build abortion (at most one today)
	Warnings      []error // non-fatal issues (missing tokens, extractor failures)

	StageDurations  map[StageName]time.Duration
	StageErrorKinds map[StageName]StageErrorKind
	StageCounts     map[StageName]StageCount

	ExtractorRan        bool
	ExtractorExit       int
	ExtractorVersion    string
	DoxyfileFingerprint string
	ConfPath            string

	Outcome  string       // string mirror for JSON consumers
	OutcomeT BuildOutcome // typed outcome (source of truth)

	// Issues captures structured machine-parsable taxonomy entries for
	// automation on top of the human-oriented Errors/Warnings slices.
	Issues []ReportIssue
}

// ReportIssueCode enumerates machine-parseable issue identifiers. Codes are a
// stable contract: only append, never reuse.
type ReportIssueCode string

const (
	IssueTemplateMissing   ReportIssueCode = "TEMPLATE_MISSING"
	IssueTokenMissing      ReportIssueCode = "TOKEN_MISSING"
	IssueExtractorMissing  ReportIssueCode = "EXTRACTOR_MISSING"
	IssueExtractorFailure  ReportIssueCode = "EXTRACTOR_FAILURE"
	IssueFetchFailure      ReportIssueCode = "FETCH_FAILURE"
	IssueNoHeaders         ReportIssueCode = "NO_HEADERS"
	IssueXMLMissing        ReportIssueCode = "XML_MISSING"
	IssueCanceled          ReportIssueCode = "BUILD_CANCELED"
	IssueGenericStageError ReportIssueCode = "GENERIC_STAGE_ERROR"
)

// IssueSeverity represents normalized severity levels.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// ReportIssue is a structured taxonomy entry describing a discrete problem.
// Message is human-friendly; Code + Stage allow automated handling; Transient
// hints retry suitability.
type ReportIssue struct {
	Code      ReportIssueCode `json:"code"`
	Stage     StageName       `json:"stage"`
	Severity  IssueSeverity   `json:"severity"`
	Message   string          `json:"message"`
	Transient bool            `json:"transient"`
}

// AddIssue appends a structured issue. Errors/Warnings mirroring stays the
// responsibility of the stage runner; issues here are purely additive.
func (r *BuildReport) AddIssue(code ReportIssueCode, stage StageName, severity IssueSeverity, msg string, transient bool) {
	r.Issues = append(r.Issues, ReportIssue{Code: code, Stage: stage, Severity: severity, Message: msg, Transient: transient})
}

// StageCount aggregates outcome counts for a stage.
type StageCount struct {
	Success  int
	Warning  int
	Fatal    int
	Canceled int
}

func newBuildReport(project string) *BuildReport {
	return &BuildReport{
		SchemaVersion:   1,
		Project:         project,
		Start:           time.Now(),
		StageDurations:  make(map[StageName]time.Duration),
		StageErrorKinds: make(map[StageName]StageErrorKind),
		StageCounts:     make(map[StageName]StageCount),
	}
}

func (r *BuildReport) finish() { r.End = time.Now() }

// Summary returns a human-readable single-line summary.
func (r *BuildReport) Summary() string {
	dur := r.End.Sub(r.Start)
	return fmt.Sprintf("project=%s hosted=%t headers=%d pages=%d extractor=%t duration=%s errors=%d warnings=%d outcome=%s",
		r.Project, r.Hosted, r.Headers, r.Pages, r.ExtractorRan, dur.Truncate(time.Millisecond), len(r.Errors), len(r.Warnings), r.Outcome)
}

// deriveOutcome sets the outcome fields based on recorded errors/warnings.
func (r *BuildReport) deriveOutcome() {
	if len(r.Errors) > 0 {
		for _, e := range r.Errors {
			if se, ok := e.(*StageError); ok && se.Kind == StageErrorCanceled {
				r.setOutcome(OutcomeCanceled)
				return
			}
		}
		r.setOutcome(OutcomeFailed)
		return
	}
	if len(r.Warnings) > 0 {
		r.setOutcome(OutcomeWarning)
		return
	}
	r.setOutcome(OutcomeSuccess)
}

// setOutcome sets both typed and string forms.
func (r *BuildReport) setOutcome(o BuildOutcome) {
	r.OutcomeT = o
	r.Outcome = string(o)
}

// Persist writes the report atomically into the provided directory:
//
//	build-report.json  (machine readable)
//	build-report.txt   (human summary)
//
// Best effort; errors are returned for caller logging but do not change the
// build outcome.
func (r *BuildReport) Persist(root string) error {
	if r.End.IsZero() {
		r.finish()
		r.deriveOutcome()
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("ensure root for report: %w", err)
	}
	jb, err := json.MarshalIndent(r.Serializable(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	jsonPath := filepath.Join(root, "build-report.json")
	tmpJSON := jsonPath + ".tmp"
	if err := os.WriteFile(tmpJSON, jb, 0644); err != nil {
		return fmt.Errorf("write temp report json: %w", err)
	}
	if err := os.Rename(tmpJSON, jsonPath); err != nil {
		return fmt.Errorf("atomic rename json: %w", err)
	}
	summaryPath := filepath.Join(root, "build-report.txt")
	tmpTxt := summaryPath + ".tmp"
	if err := os.WriteFile(tmpTxt, []byte(r.Summary()+"\n"), 0644); err != nil {
		return fmt.Errorf("write temp report summary: %w", err)
	}
	if err := os.Rename(tmpTxt, summaryPath); err != nil {
		return fmt.Errorf("atomic rename summary: %w", err)
	}
	return nil
}

// Serializable returns a JSON-friendly mirror with typed maps converted to
// string keys and errors flattened to strings. Persist and the build history
// store share this as the single serialized form.
func (r *BuildReport) Serializable() *BuildReportSerializable {
	durations := make(map[string]time.Duration, len(r.StageDurations))
	for k, v := range r.StageDurations {
		durations[string(k)] = v
	}
	kinds := make(map[string]string, len(r.StageErrorKinds))
	for k, v := range r.StageErrorKinds {
		kinds[string(k)] = string(v)
	}
	counts := make(map[string]StageCount, len(r.StageCounts))
	for k, v := range r.StageCounts {
		counts[string(k)] = v
	}

	s := &BuildReportSerializable{
		SchemaVersion:       r.SchemaVersion,
		Project:             r.Project,
		Hosted:              r.Hosted,
		HostedVar:           r.HostedVar,
		SourceCommit:        r.SourceCommit,
		Headers:             r.Headers,
		Pages:               r.Pages,
		Overrides:           r.Overrides,
		Start:               r.Start,
		End:                 r.End,
		Errors:              make([]string, len(r.Errors)),
		Warnings:            make([]string, len(r.Warnings)),
		StageDurations:      durations,
		StageErrorKinds:     kinds,
		StageCounts:         counts,
		ExtractorRan:        r.ExtractorRan,
		ExtractorExit:       r.ExtractorExit,
		ExtractorVersion:    r.ExtractorVersion,
		DoxyfileFingerprint: r.DoxyfileFingerprint,
		ConfPath:            r.ConfPath,
		Outcome:             r.Outcome,
		Issues:              r.Issues,
	}
	for i, e := range r.Errors {
		s.Errors[i] = e.Error()
	}
	for i, w := range r.Warnings {
		s.Warnings[i] = w.Error()
	}
	return s
}

// BuildReportSerializable mirrors BuildReport but with string errors for JSON
// output.
type BuildReportSerializable struct {
	SchemaVersion       int                      `json:"schema_version"`
	Project             string                   `json:"project"`
	Hosted              bool                     `json:"hosted"`
	HostedVar           string                   `json:"hosted_var,omitempty"`
	SourceCommit        string                   `json:"source_commit,omitempty"`
	Headers             int                      `json:"headers"`
	Pages               int                      `json:"pages"`
	Overrides           int                      `json:"overrides"`
	Start               time.Time                `json:"start"`
	End                 time.Time                `json:"end"`
	Errors              []string                 `json:"errors"`
	Warnings            []string                 `json:"warnings"`
	StageDurations      map[string]time.Duration `json:"stage_durations"`
	StageErrorKinds     map[string]string        `json:"stage_error_kinds"`
	StageCounts         map[string]StageCount    `json:"stage_counts"`
	ExtractorRan        bool                     `json:"extractor_ran"`
	ExtractorExit       int                      `json:"extractor_exit"`
	ExtractorVersion    string                   `json:"extractor_version,omitempty"`
	DoxyfileFingerprint string                   `json:"doxyfile_fingerprint,omitempty"`
	ConfPath            string                   `json:"conf_path,omitempty"`
	Outcome             string                   `json:"outcome"`
	Issues              []ReportIssue            `json:"issues"`
}
