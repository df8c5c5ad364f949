package servebench

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/servebench/servebench/internal/report"
)

// Analyze rebuilds the metrics table from a past session directory, runs the
// best-point and goodput analysis over it, prints both and refreshes the
// summary file next to the artifacts.
func (a *App) Analyze(outputRoot string) error {
	rep, err := report.Aggregate(outputRoot, nil)
	if err != nil {
		return err
	}
	analysis := report.Analyze(rep)
	path, err := report.WriteSummary(outputRoot, rep, analysis)
	if err != nil {
		return err
	}
	fmt.Fprint(a.Out, rep.Render())
	fmt.Fprint(a.Out, "\n")
	fmt.Fprint(a.Out, report.RenderAnalysis(analysis))
	log.Infof("summary written to %s", path)
	return nil
}
