package servebench

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/servebench/servebench/internal/telemetry"
)

// GpuMonitor samples GPU telemetry to a CSV file until the context is
// cancelled, then prints the session summary. outPath overrides the
// configured output file.
func (a *App) GpuMonitor(ctx context.Context, outPath string) error {
	conf := a.Params.Config.Telemetry
	if outPath != "" {
		conf.OutPath = outPath
	}
	if conf.OutPath == "" {
		conf.OutPath = telemetry.DefaultFileName
	}

	recorder := telemetry.NewRecorder(telemetry.NewFallback(), conf)
	if err := recorder.Start(ctx); err != nil {
		return err
	}
	log.Infof("recording GPU telemetry to %s, interrupt to stop", conf.OutPath)

	<-ctx.Done()

	summary, err := recorder.Stop()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "%s\n", summary)
	return nil
}
