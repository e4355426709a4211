package ui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/satishbabariya/pgreindex/internal/core/index/domain"
	"github.com/satishbabariya/pgreindex/internal/service"
)

// ConsoleReporter prints one line per database, finding and rebuild outcome,
// then a summary table.
type ConsoleReporter struct {
	p *Printer
}

// NewConsoleReporter creates a reporter writing through p.
func NewConsoleReporter(p *Printer) *ConsoleReporter {
	return &ConsoleReporter{p: p}
}

// RunStarted prints the run header.
func (r *ConsoleReporter) RunStarted(runID, target string) {
	r.p.Info("run %s on %s", runID, target)
}

// DatabasesSelected prints the selected page.
func (r *ConsoleReporter) DatabasesSelected(databases []domain.Database) {
	if len(databases) == 0 {
		r.p.Info("no databases matched")
		return
	}
	items := make([]string, len(databases))
	for i, db := range databases {
		items[i] = fmt.Sprintf("%s (%s)", db.Name, humanBytes(db.SizeBytes))
	}
	r.p.Info("%d database(s) selected", len(databases))
	r.p.List(items)
}

// DatabaseAudited prints every finding of one database, or its audit error.
func (r *ConsoleReporter) DatabaseAudited(database domain.Database, result *domain.AuditResult, err error) {
	r.p.Section(database.Name)
	if err != nil {
		r.p.Error("%s: audit failed, skipping: %v", database.Name, err)
		return
	}

	findings := result.Findings()
	if len(findings) == 0 {
		r.p.Success("%s: no unhealthy indexes", database.Name)
		return
	}
	for _, f := range findings {
		switch f.Kind {
		case domain.FindingInvalid:
			r.p.Warning("%s: invalid index %s", database.Name, f.Index)
		case domain.FindingOversized:
			r.p.Warning("%s: oversized index %s (%s)", database.Name, f.Index, humanBytes(f.SizeBytes))
		}
		if f.Table.Name != "" {
			r.p.Detail("on table %s", f.Table)
		}
	}
}

// RebuildFinished prints one rebuild outcome.
func (r *ConsoleReporter) RebuildFinished(o domain.Outcome) {
	switch o.Status {
	case domain.Succeeded:
		r.p.Success("%s: rebuilt %s in %s", o.Database, o.Index, o.Duration.Round(time.Millisecond))
	case domain.Failed:
		r.p.Error("%s: rebuild of %s failed: %s", o.Database, o.Index, o.Reason)
	case domain.Skipped:
		r.p.Info("%s: skipped rebuild of %s (%s)", o.Database, o.Index, o.Reason)
	}
}

// RunFinished prints the run summary table.
func (r *ConsoleReporter) RunFinished(report *service.Report, err error) {
	if len(report.Databases) == 0 && err != nil {
		return
	}

	t := report.Totals()
	rows := [][]string{
		{"databases", strconv.Itoa(t.Databases)},
		{"audit failures", strconv.Itoa(t.AuditFailures)},
		{"invalid indexes", strconv.Itoa(t.Invalid)},
		{"oversized indexes", strconv.Itoa(t.Oversized)},
		{r.p.Status("succeeded"), strconv.Itoa(t.Succeeded)},
		{r.p.Status("failed"), strconv.Itoa(t.Failed)},
		{r.p.Status("skipped"), strconv.Itoa(t.Skipped)},
		{"duration", report.Duration().Round(time.Millisecond).String()},
	}
	if tableErr := r.p.Table([]string{"run " + report.RunID, report.State.String()}, rows); tableErr != nil {
		r.p.Error("failed to render summary: %v", tableErr)
	}
}

func humanBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(n))
}

var _ service.Reporter = (*ConsoleReporter)(nil)
