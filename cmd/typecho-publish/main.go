package main

import (
	"context"
	"log/slog"
	"os"

	"typecho-publish/cmd/typecho-publish/commands"
	"typecho-publish/lib/telemetry"
)

func main() {
	ctx := context.Background()

	tel, err := telemetry.SetupFromEnv(ctx, "typecho-publish")
	telemetry.InitSlog(false)
	if err != nil && !os.IsNotExist(err) {
		// run without tracing rather than refuse to start
		slog.Warn("failed to set up telemetry", "err", err)
	}
	defer tel.Shutdown(ctx)

	commands.ExecuteContext(ctx)
}
