package main

import (
	"context"
	"log/slog"

	"oncopainel-backend/lib/restyutil"
	"oncopainel-backend/lib/scrapers/tabnet"
	"oncopainel-backend/lib/serviceutil"
	"oncopainel-backend/lib/telemetry"
)

func InitTelemetry(ctx context.Context, verbose bool) {
	telemetry.InitSlog(verbose)

	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	t, err := telemetry.SetupFromEnv(ctx, "oncopaineld")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	go func() {
		<-ctx.Done()
		t.Shutdown(context.Background())
	}()
	telemetry.InstrumentPerfStats(ctx)

	if !verbose {
		return
	}

	tabnet.SetRestyInstrumentOutput(
		restyutil.NewFilesystemOutput(".dev/resty/tabnet"),
	)
}
