package models

import "sort"

// RuleID identifies a flow rule.
type RuleID string

const (
	RuleNullDereference   RuleID = "null-dereference"
	RuleConstantCondition RuleID = "constant-condition"
	RuleDeadStore         RuleID = "dead-store"
)

func (r RuleID) String() string { return string(r) }

// Severity represents the severity of a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

func (s Severity) String() string { return string(s) }

// Finding is one rule violation.
type Finding struct {
	Rule     RuleID   `json:"rule" toon:"rule"`
	Severity Severity `json:"severity" toon:"severity"`
	File     string   `json:"file" toon:"file"`
	Line     uint32   `json:"line" toon:"line"`
	Column   uint32   `json:"column" toon:"column"`
	Method   string   `json:"method" toon:"method"`
	Message  string   `json:"message" toon:"message"`
}

// MethodSummary describes the analysis of one method body.
type MethodSummary struct {
	Name       string `json:"name" toon:"name"`
	Line       uint32 `json:"line" toon:"line"`
	Blocks     int    `json:"blocks" toon:"blocks"`
	Cyclomatic int    `json:"cyclomatic" toon:"cyclomatic"`
	Steps      int    `json:"steps" toon:"steps"`
	States     int    `json:"states" toon:"states"`
	// Exceeded is set when exploration stopped at a budget. Findings that
	// require a complete exploration are not reported for such methods.
	Exceeded bool `json:"exceeded" toon:"exceeded"`
}

// FileFlow holds the result for one source file.
type FileFlow struct {
	Path      string          `json:"path" toon:"path"`
	Generated bool            `json:"generated,omitempty" toon:"generated,omitempty"`
	Skipped   bool            `json:"skipped,omitempty" toon:"skipped,omitempty"`
	HasErrors bool            `json:"has_errors,omitempty" toon:"has_errors,omitempty"`
	Methods   []MethodSummary `json:"methods,omitempty" toon:"methods,omitempty"`
	Findings  []Finding       `json:"findings,omitempty" toon:"findings,omitempty"`
}

// FlowAnalysis is the result of analyzing a set of files.
type FlowAnalysis struct {
	Files   []FileFlow  `json:"files" toon:"files"`
	Summary FlowSummary `json:"summary" toon:"summary"`
}

// FlowSummary provides aggregate statistics.
type FlowSummary struct {
	TotalFiles      int            `json:"total_files" toon:"total_files"`
	AnalyzedFiles   int            `json:"analyzed_files" toon:"analyzed_files"`
	GeneratedFiles  int            `json:"generated_files" toon:"generated_files"`
	TotalMethods    int            `json:"total_methods" toon:"total_methods"`
	ExceededMethods int            `json:"exceeded_methods" toon:"exceeded_methods"`
	TotalFindings   int            `json:"total_findings" toon:"total_findings"`
	ByRule          map[string]int `json:"by_rule" toon:"by_rule"`
	BySeverity      map[string]int `json:"by_severity" toon:"by_severity"`
}

// NewFlowSummary creates an initialized summary.
func NewFlowSummary() FlowSummary {
	return FlowSummary{
		ByRule:     make(map[string]int),
		BySeverity: make(map[string]int),
	}
}

// AddFile updates the summary with a file result.
func (s *FlowSummary) AddFile(f FileFlow) {
	s.TotalFiles++
	if f.Generated {
		s.GeneratedFiles++
	}
	if f.Skipped {
		return
	}
	s.AnalyzedFiles++
	s.TotalMethods += len(f.Methods)
	for _, m := range f.Methods {
		if m.Exceeded {
			s.ExceededMethods++
		}
	}
	for _, fd := range f.Findings {
		s.TotalFindings++
		s.ByRule[string(fd.Rule)]++
		s.BySeverity[string(fd.Severity)]++
	}
}

// Findings returns every finding ordered by file, line and column.
func (a *FlowAnalysis) Findings() []Finding {
	var out []Finding
	for _, f := range a.Files {
		out = append(out, f.Findings...)
	}
	SortFindings(out)
	return out
}

// SortFindings orders findings by file, line, column and rule.
func SortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Rule < b.Rule
	})
}

// NewFlowAnalysis builds an analysis from file results, sorted by path.
func NewFlowAnalysis(files []FileFlow) *FlowAnalysis {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	a := &FlowAnalysis{Files: files, Summary: NewFlowSummary()}
	for _, f := range files {
		SortFindings(f.Findings)
		a.Summary.AddFile(f)
	}
	return a
}
