package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/panbanda/csflow/pkg/models"
)

var (
	_ Renderable = (*FlowReport)(nil)
	_ Renderable = (*CFGReport)(nil)
	_ Renderable = (*LivenessReport)(nil)
	_ Renderable = (*ExplorationReport)(nil)
)

// FlowReport renders the findings of an analysis run.
type FlowReport struct {
	Analysis *models.FlowAnalysis
}

func (r *FlowReport) RenderData() any { return r.Analysis }

func (r *FlowReport) table(colored bool) *Table {
	findings := r.Analysis.Findings()
	rows := make([][]string, 0, len(findings))
	for _, f := range findings {
		sev := string(f.Severity)
		if colored {
			sev = SeverityColor(sev, sev)
		}
		rows = append(rows, []string{
			sev,
			fmt.Sprintf("%s:%d:%d", f.File, f.Line, f.Column),
			string(f.Rule),
			f.Method,
			f.Message,
		})
	}
	return NewTable("Findings", []string{"Severity", "Location", "Rule", "Method", "Message"}, rows, nil)
}

func (r *FlowReport) summary() string {
	s := r.Analysis.Summary
	line := fmt.Sprintf("%d files analyzed, %d methods, %d findings", s.AnalyzedFiles, s.TotalMethods, s.TotalFindings)
	if s.GeneratedFiles > 0 {
		line += fmt.Sprintf(", %d generated files", s.GeneratedFiles)
	}
	if s.ExceededMethods > 0 {
		line += fmt.Sprintf(", %d methods over budget", s.ExceededMethods)
	}
	return line
}

func (r *FlowReport) RenderText(w io.Writer, colored bool) error {
	if r.Analysis.Summary.TotalFindings == 0 {
		if colored {
			color.New(color.FgGreen).Fprintln(w, "No findings.")
		} else {
			fmt.Fprintln(w, "No findings.")
		}
	} else if err := r.table(colored).RenderText(w, colored); err != nil {
		return err
	}
	fmt.Fprintln(w, r.summary())
	return nil
}

func (r *FlowReport) RenderMarkdown(w io.Writer) error {
	if r.Analysis.Summary.TotalFindings == 0 {
		fmt.Fprintf(w, "No findings.\n\n")
	} else if err := r.table(false).RenderMarkdown(w); err != nil {
		return err
	}
	fmt.Fprintf(w, "_%s_\n", r.summary())
	return nil
}

// CFGReport renders a control-flow graph.
type CFGReport struct {
	View models.CFGView
}

func (r *CFGReport) RenderData() any { return r.View }

func (r *CFGReport) table() *Table {
	v := r.View
	rows := make([][]string, 0, len(v.Blocks))
	for _, b := range v.Blocks {
		id := strconv.Itoa(b.ID)
		switch b.ID {
		case v.Entry:
			id += " (entry)"
		case v.Exit:
			id += " (exit)"
		}
		rows = append(rows, []string{
			id,
			b.Kind,
			strings.Join(b.Instructions, "; "),
			b.Branch,
			joinInts(b.Successors),
		})
	}
	title := fmt.Sprintf("%s in %s", v.Method, v.File)
	footer := []string{"", "", fmt.Sprintf("%d blocks, %d edges", len(v.Blocks), v.Edges), fmt.Sprintf("cyclomatic %d", v.Cyclomatic), ""}
	return NewTable(title, []string{"Block", "Kind", "Instructions", "Branch", "Successors"}, rows, footer)
}

func (r *CFGReport) loops() string {
	if len(r.View.Loops) == 0 {
		return "Loops: none"
	}
	parts := make([]string, len(r.View.Loops))
	for i, l := range r.View.Loops {
		parts[i] = "{" + joinInts(l) + "}"
	}
	return "Loops: " + strings.Join(parts, " ")
}

func (r *CFGReport) RenderText(w io.Writer, colored bool) error {
	if err := r.table().RenderText(w, colored); err != nil {
		return err
	}
	fmt.Fprintln(w, r.loops())
	return nil
}

func (r *CFGReport) RenderMarkdown(w io.Writer) error {
	if err := r.table().RenderMarkdown(w); err != nil {
		return err
	}
	fmt.Fprintln(w, r.loops())
	return nil
}

// LivenessReport renders per-block live variables.
type LivenessReport struct {
	View models.LivenessView
}

func (r *LivenessReport) RenderData() any { return r.View }

func (r *LivenessReport) table() *Table {
	v := r.View
	rows := make([][]string, 0, len(v.Blocks))
	for _, b := range v.Blocks {
		rows = append(rows, []string{
			strconv.Itoa(b.ID),
			b.Kind,
			strings.Join(b.LiveIn, ", "),
			strings.Join(b.LiveOut, ", "),
		})
	}
	title := fmt.Sprintf("Liveness of %s in %s", v.Method, v.File)
	return NewTable(title, []string{"Block", "Kind", "Live in", "Live out"}, rows, nil)
}

func (r *LivenessReport) footer() string {
	captured := "none"
	if len(r.View.Captured) > 0 {
		captured = strings.Join(r.View.Captured, ", ")
	}
	return fmt.Sprintf("Captured: %s (converged after %d passes)", captured, r.View.Passes)
}

func (r *LivenessReport) RenderText(w io.Writer, colored bool) error {
	if err := r.table().RenderText(w, colored); err != nil {
		return err
	}
	fmt.Fprintln(w, r.footer())
	return nil
}

func (r *LivenessReport) RenderMarkdown(w io.Writer) error {
	if err := r.table().RenderMarkdown(w); err != nil {
		return err
	}
	fmt.Fprintln(w, r.footer())
	return nil
}

// ExplorationReport renders the outcome of a symbolic exploration.
type ExplorationReport struct {
	View models.ExplorationView
}

func (r *ExplorationReport) RenderData() any { return r.View }

func (r *ExplorationReport) table() *Table {
	v := r.View
	rows := make([][]string, 0, len(v.Blocks))
	for _, b := range v.Blocks {
		rows = append(rows, []string{strconv.Itoa(b.ID), b.Kind, strconv.Itoa(b.States), b.Outcome})
	}
	title := fmt.Sprintf("Exploration of %s in %s", v.Method, v.File)
	return NewTable(title, []string{"Block", "Kind", "States", "Branch taken"}, rows, nil)
}

func (r *ExplorationReport) footer() string {
	line := fmt.Sprintf("%d steps, %d states", r.View.Steps, r.View.States)
	if r.View.Exceeded {
		line += ", budget exceeded: results are partial"
	}
	return line
}

func (r *ExplorationReport) RenderText(w io.Writer, colored bool) error {
	if err := r.table().RenderText(w, colored); err != nil {
		return err
	}
	if r.View.Exceeded && colored {
		color.New(color.FgYellow).Fprintln(w, r.footer())
		return nil
	}
	fmt.Fprintln(w, r.footer())
	return nil
}

func (r *ExplorationReport) RenderMarkdown(w io.Writer) error {
	if err := r.table().RenderMarkdown(w); err != nil {
		return err
	}
	fmt.Fprintln(w, r.footer())
	return nil
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}
