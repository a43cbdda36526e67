package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go_kunquant/db"
	"go_kunquant/pipeline"

	"github.com/fatih/color"
)

const timeLayout = "2006-01-02 15:04:05"

// Printer renders command results as colored text or JSON.
type Printer struct {
	w       io.Writer
	format  string
	noColor bool
}

// NewPrinter creates a Printer. Color is also off when fatih/color
// detects a non-terminal.
func NewPrinter(w io.Writer, format string, noColor bool) *Printer {
	return &Printer{w: w, format: format, noColor: noColor}
}

func (p *Printer) color(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if p.noColor {
		c.DisableColor()
	}
	return c
}

func (p *Printer) header(title string) {
	p.color(color.FgCyan, color.Bold).Fprintf(p.w, "━━━ %s ━━━\n", title)
}

func (p *Printer) field(name string, value interface{}) {
	fmt.Fprintf(p.w, "  %-9s %v\n", name, value)
}

func (p *Printer) ok(format string, args ...interface{}) {
	p.color(color.FgGreen).Fprintf(p.w, "  ✓ "+format+"\n", args...)
}

func (p *Printer) fail(format string, args ...interface{}) {
	p.color(color.FgRed).Fprintf(p.w, "  ✗ "+format+"\n", args...)
}

func (p *Printer) json(v interface{}) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runView is the JSON shape of a finished run.
type runView struct {
	RunID      string            `json:"run_id"`
	Mode       string            `json:"mode"`
	Library    string            `json:"library"`
	Module     string            `json:"module"`
	Stocks     int               `json:"stocks"`
	Steps      int               `json:"steps"`
	Inputs     []string          `json:"inputs"`
	Outputs    []string          `json:"outputs"`
	DurationMS int64             `json:"duration_ms"`
	Files      map[string]string `json:"files,omitempty"`
}

// RunResult prints the summary of a batch run or stream replay.
func (p *Printer) RunResult(res *pipeline.Result) error {
	run := res.Run
	if p.format == "json" {
		return p.json(runView{
			RunID: run.RunID, Mode: run.Mode, Library: run.Library, Module: run.Module,
			Stocks: run.Stocks, Steps: run.Steps, Inputs: run.Inputs, Outputs: run.Outputs,
			DurationMS: run.Duration.Milliseconds(), Files: res.Files,
		})
	}

	p.header(fmt.Sprintf("%s run %s", run.Mode, run.RunID))
	p.field("module", run.Module)
	p.field("library", run.Library)
	p.field("stocks", run.Stocks)
	p.field("steps", run.Steps)
	p.field("inputs", strings.Join(run.Inputs, ", "))
	p.field("outputs", strings.Join(run.Outputs, ", "))
	p.field("duration", run.Duration.Round(time.Millisecond))
	for _, name := range run.Outputs {
		if path, ok := res.Files[name]; ok {
			p.ok("%s → %s", name, path)
		}
	}
	return nil
}

// storedRunView is the JSON shape of a stored run.
type storedRunView struct {
	ID         string `json:"id"`
	Mode       string `json:"mode"`
	Library    string `json:"library"`
	Module     string `json:"module"`
	Stocks     int    `json:"stocks"`
	Steps      int    `json:"steps"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

func newStoredRunView(r db.Run) storedRunView {
	v := storedRunView{
		ID: r.ID, Mode: r.Mode, Library: r.Library, Module: r.Module,
		Stocks: r.Stocks, Steps: r.Steps, Status: r.Status, Error: r.ErrorMessage,
		DurationMS: r.Duration.Milliseconds(),
		StartedAt:  r.StartedAt.UTC().Format(time.RFC3339),
	}
	if !r.FinishedAt.IsZero() {
		v.FinishedAt = r.FinishedAt.UTC().Format(time.RFC3339)
	}
	return v
}

// Runs prints a table of stored runs.
func (p *Printer) Runs(runs []db.Run) error {
	if p.format == "json" {
		views := make([]storedRunView, len(runs))
		for i, r := range runs {
			views[i] = newStoredRunView(r)
		}
		return p.json(views)
	}

	if len(runs) == 0 {
		fmt.Fprintln(p.w, "no runs recorded")
		return nil
	}
	fmt.Fprintf(p.w, "%-36s  %-6s  %-20s  %-9s  %6s  %s\n", "ID", "MODE", "MODULE", "STATUS", "STEPS", "STARTED")
	for _, r := range runs {
		fmt.Fprintf(p.w, "%-36s  %-6s  %-20s  ", r.ID, r.Mode, r.Module)
		p.statusColor(r.Status).Fprintf(p.w, "%-9s", r.Status)
		fmt.Fprintf(p.w, "  %6d  %s\n", r.Steps, r.StartedAt.UTC().Format(timeLayout))
	}
	return nil
}

// RunDetail prints one stored run and how many values it holds.
func (p *Printer) RunDetail(r *db.Run, values int) error {
	if p.format == "json" {
		return p.json(struct {
			storedRunView
			Values int `json:"values"`
		}{newStoredRunView(*r), values})
	}

	p.header("run " + r.ID)
	p.field("mode", r.Mode)
	p.field("module", r.Module)
	p.field("library", r.Library)
	fmt.Fprintf(p.w, "  %-9s ", "status")
	p.statusColor(r.Status).Fprintln(p.w, r.Status)
	p.field("stocks", r.Stocks)
	p.field("steps", r.Steps)
	p.field("duration", r.Duration)
	p.field("started", r.StartedAt.UTC().Format(timeLayout))
	if !r.FinishedAt.IsZero() {
		p.field("finished", r.FinishedAt.UTC().Format(timeLayout))
	}
	if r.ErrorMessage != "" {
		p.fail("%s", r.ErrorMessage)
	}
	p.field("values", values)
	return nil
}

func (p *Printer) statusColor(status string) *color.Color {
	switch status {
	case db.StatusSucceeded:
		return p.color(color.FgGreen)
	case db.StatusFailed:
		return p.color(color.FgRed)
	default:
		return p.color(color.FgYellow)
	}
}

// ModuleReport is the inspection outcome for one module.
type ModuleReport struct {
	Name      string `json:"name"`
	Found     bool   `json:"found"`
	Streaming *bool  `json:"streaming,omitempty"`
	Error     string `json:"error,omitempty"`
}

// InspectReport describes a factor library.
type InspectReport struct {
	Path    string         `json:"path"`
	Backend string         `json:"backend"`
	Header  string         `json:"header"`
	Modules []ModuleReport `json:"modules"`
}

// Inspect prints a library report.
func (p *Printer) Inspect(r InspectReport) error {
	if p.format == "json" {
		return p.json(r)
	}

	p.header(r.Path)
	p.field("backend", r.Backend)
	p.field("header", r.Header)

	mods := append([]ModuleReport(nil), r.Modules...)
	sort.Slice(mods, func(i, j int) bool { return mods[i].Name < mods[j].Name })
	for _, m := range mods {
		switch {
		case !m.Found:
			p.fail("%s  %s", m.Name, m.Error)
		case m.Streaming == nil:
			p.ok("%s", m.Name)
		case *m.Streaming:
			p.ok("%s  batch+stream", m.Name)
		default:
			p.ok("%s  batch", m.Name)
		}
	}
	return nil
}

// Version prints build information.
func (p *Printer) Version(version, backend string) error {
	if p.format == "json" {
		return p.json(map[string]string{"version": version, "backend": backend})
	}
	fmt.Fprintf(p.w, "kunrun %s\n", version)
	p.field("backend", backend)
	return nil
}

// Progress prints a stream replay progress line.
func (p *Printer) Progress(tick int) {
	p.color(color.FgHiBlack).Fprintf(p.w, "  ◌ tick %d\n", tick)
}
