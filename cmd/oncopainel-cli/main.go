package main

import (
	"context"
	"log/slog"

	"oncopainel-backend/cmd/oncopainel-cli/commands"
	"oncopainel-backend/lib/telemetry"
)

func main() {
	ctx := context.Background()

	telemetry.InitSlog(false)
	_, err := telemetry.SetupFromEnv(ctx, "oncopainel-cli")
	if err != nil {
		slog.Debug("telemetry disabled", "err", err)
	}

	commands.ExecuteContext(ctx)
}
