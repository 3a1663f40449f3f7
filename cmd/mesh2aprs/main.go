package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/skobkin/mesh2aprs/internal/app"
	"github.com/skobkin/mesh2aprs/internal/aprs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("run mesh2aprs", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet(app.Name, flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", app.ConfigFilename, "path to the JSON config file")
	passcodeFor := fs.String("passcode", "", "print the APRS-IS passcode for a call-sign and exit")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		_, err := fmt.Fprintln(stdout, app.BuildSummary())
		return err
	}
	if callsign := strings.TrimSpace(*passcodeFor); callsign != "" {
		_, err := fmt.Fprintf(stdout, "%s %d\n", strings.ToUpper(callsign), aprs.Passcode(callsign))
		return err
	}

	rt, err := app.Initialize(ctx, *configPath)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	logger := rt.LogManager.Logger("cli")

	<-rt.Ctx.Done()
	stats := rt.Stats()
	logger.Info("shutting down",
		"aprs_is", app.DescribeStatus(rt.CurrentAPRSStatus()),
		"sent", stats.Sent,
		"suppressed", stats.Suppressed,
		"failed", stats.Failed,
	)

	return rt.Close()
}
