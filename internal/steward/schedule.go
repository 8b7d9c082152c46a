package steward

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/squireai/squire/internal/config"
	"github.com/squireai/squire/internal/logging"
)

// CycleFunc runs one pipeline cycle. Scheduling code never inspects what it
// does — only when it runs.
type CycleFunc func(ctx context.Context) error

// Watch runs cycle once immediately, then registers it with a robfig/cron
// runner firing every cfg.Interval (expressed as an "@every" cron spec),
// skipping any firing that falls inside the configured quiet-hours window,
// until ctx is cancelled. Adapted from the teacher's gateway Scheduler,
// narrowed from its per-schedule DB-backed CRUD to Steward's single
// fixed-interval cycle.
func Watch(ctx context.Context, cfg config.ScheduleConfig, cycle CycleFunc) error {
	logger := logging.L(ctx, "steward.schedule")

	loc, err := resolveLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid schedule timezone %q: %w", cfg.Timezone, err)
	}
	quiet, err := parseQuietHours(cfg.QuietHours)
	if err != nil {
		return fmt.Errorf("invalid quiet_hours %q: %w", cfg.QuietHours, err)
	}

	cronSpec := cfg.Interval
	if !strings.HasPrefix(cronSpec, "@") {
		cronSpec = "@every " + cronSpec
	}

	runIfNotQuiet := func() {
		now := time.Now().In(loc)
		if quiet != nil && quiet.contains(now) {
			logger.Info("skipping cycle during quiet hours", "now", now.Format("15:04"), "window", cfg.QuietHours)
			return
		}
		if err := cycle(ctx); err != nil {
			logger.Error("pipeline cycle failed", "error", err)
		}
	}

	runner := cron.New(cron.WithLocation(loc))
	if _, err := runner.AddFunc(cronSpec, runIfNotQuiet); err != nil {
		return fmt.Errorf("invalid schedule interval %q: %w", cfg.Interval, err)
	}

	runIfNotQuiet()
	runner.Start()
	defer runner.Stop()

	<-ctx.Done()
	return nil
}

func resolveLocation(tz string) (*time.Location, error) {
	if strings.TrimSpace(tz) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(tz)
}

// quietWindow is a daily HH:MM-HH:MM window, possibly wrapping past
// midnight (e.g. "22:00-06:00").
type quietWindow struct {
	startMin, endMin int
}

func (w quietWindow) contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	if w.startMin <= w.endMin {
		return m >= w.startMin && m < w.endMin
	}
	return m >= w.startMin || m < w.endMin
}

func parseQuietHours(spec string) (*quietWindow, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected HH:MM-HH:MM")
	}
	start, err := parseHHMM(parts[0])
	if err != nil {
		return nil, err
	}
	end, err := parseHHMM(parts[1])
	if err != nil {
		return nil, err
	}
	return &quietWindow{startMin: start, endMin: end}, nil
}

func parseHHMM(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}
