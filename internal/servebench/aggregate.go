package servebench

import (
	"fmt"

	"github.com/servebench/servebench/internal/report"
)

// Aggregate rebuilds the metrics table from the artifacts under a past
// session directory and prints it. The artifacts are re-read every time, so
// the table always reflects what is on disk.
func (a *App) Aggregate(outputRoot string) error {
	rep, err := report.Aggregate(outputRoot, nil)
	if err != nil {
		return err
	}
	fmt.Fprint(a.Out, rep.Render())
	return nil
}
