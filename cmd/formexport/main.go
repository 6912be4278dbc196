// Command formexport converts saved form submissions into the same CSV,
// ZIP and OData JSON files the server streams, without a database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/formbridge/internal/core"
)

// Version is set at build time.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := getRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "formexport:", err)
		if core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, " ", core.FormatUserError(err))
		}
		os.Exit(1)
	}
}
