package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mvillareal/intake-scheduler/cmd/mainconfig"
	"github.com/mvillareal/intake-scheduler/internal/lock"
	"github.com/mvillareal/intake-scheduler/pkg/logging"
)

// The full rebuild fires at this local wall-clock time every day.
const (
	nightlyHour   = 0
	nightlyMinute = 30

	choiceRefreshInterval = time.Hour
	integrityTickInterval = 10 * time.Minute
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := mainconfig.Build(ctx)
	if err != nil {
		logging.Default().Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	logger := app.Logger
	loc := app.Cfg.Location()
	logger.Info("starting intake-scheduler worker",
		"env", app.Cfg.Env,
		"timezone", app.Cfg.Timezone,
		"future_days", app.Cfg.FutureDays,
	)

	go nightlyLoop(ctx, app, loc)
	go choiceRefreshLoop(ctx, app)
	go integrityLoop(ctx, app)
	go quotaResetLoop(ctx, app, loc)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("scheduler shutting down")
	cancel()
	time.Sleep(2 * time.Second)
}

// nightlyLoop runs the full rebuild at the configured wall-clock time every
// day.
func nightlyLoop(ctx context.Context, app *mainconfig.App, loc *time.Location) {
	for {
		wait := untilNext(time.Now().In(loc), nightlyHour, nightlyMinute)
		app.Logger.Info("nightly rebuild scheduled", "in", wait.String())
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		if err := app.Nightly.Run(ctx); err != nil {
			if errors.Is(err, lock.ErrBusy) {
				app.Logger.Warn("nightly rebuild skipped, lock busy")
				continue
			}
			app.Logger.Error("nightly rebuild failed", "error", err)
		}
	}
}

// choiceRefreshLoop keeps the intake form's date selector converging even
// when no nightly run intervened.
func choiceRefreshLoop(ctx context.Context, app *mainconfig.App) {
	ticker := time.NewTicker(choiceRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := app.Nightly.RefreshChoices(ctx); err != nil {
				app.Logger.Error("hourly choice refresh failed", "error", err)
				app.Alerter.AlertError(ctx, "choice_refresh", err)
			}
		}
	}
}

// integrityLoop ticks frequently; the pass itself throttles to its
// configured minimum interval and short-circuits when nothing changed.
func integrityLoop(ctx context.Context, app *mainconfig.App) {
	ticker := time.NewTicker(integrityTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := app.Integrity.Run(ctx); err != nil {
				app.Logger.Error("integrity check failed", "error", err)
			}
		}
	}
}

// quotaResetLoop zeroes the daily API-call counter at local midnight.
func quotaResetLoop(ctx context.Context, app *mainconfig.App, loc *time.Location) {
	for {
		wait := untilNext(time.Now().In(loc), 0, 0)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		if err := app.Quota.ResetDaily(ctx); err != nil {
			app.Logger.Error("daily quota reset failed", "error", err)
			app.Alerter.AlertError(ctx, "quota_reset", err)
		}
	}
}

// untilNext returns the duration until the next occurrence of hh:mm after
// now, always strictly positive so back-to-back fires cannot happen.
func untilNext(now time.Time, hour, minute int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
