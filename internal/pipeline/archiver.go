package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// Archiver periodically moves verdict and analysis history past the
// retention window to cold storage.
type Archiver struct {
	blobArchiver  domain.Archiver
	retentionDays int
	logger        *slog.Logger
	now           func() time.Time

	// OnError, when set, is told about every failed scheduled run.
	OnError func(kind string)
}

func NewArchiver(blobArchiver domain.Archiver, retentionDays int, logger *slog.Logger) *Archiver {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &Archiver{
		blobArchiver:  blobArchiver,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archiver")),
		now:           time.Now,
	}
}

// Run archives everything older than the retention window. Both kinds are
// attempted even when the first fails.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := a.now().UTC().AddDate(0, 0, -a.retentionDays)
	a.logger.InfoContext(ctx, "starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	verdicts, verr := a.blobArchiver.ArchiveVerdicts(ctx, cutoff)
	if verr != nil {
		verr = fmt.Errorf("pipeline: archive verdicts before %s: %w", cutoff.Format(time.RFC3339), verr)
	}
	analyses, aerr := a.blobArchiver.ArchiveAnalyses(ctx, cutoff)
	if aerr != nil {
		aerr = fmt.Errorf("pipeline: archive analyses before %s: %w", cutoff.Format(time.RFC3339), aerr)
	}

	a.logger.InfoContext(ctx, "archive run complete",
		slog.Int64("verdicts_archived", verdicts),
		slog.Int64("analyses_archived", analyses),
	)
	return errors.Join(verr, aerr)
}

// RunCron runs the archiver on a 5-field cron schedule ("minute hour
// day-of-month month day-of-week", UTC) until ctx is cancelled. Fields accept
// "*", single values, and comma lists; "0 3 * * *" runs daily at 03:00.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := nextCronTime(cronExpr, a.now().UTC())
		if err != nil {
			return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
		}

		waitDuration := next.Sub(a.now())
		a.logger.Info("archiver waiting for next cron trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", waitDuration),
		)

		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
				if a.OnError != nil {
					a.OnError("archive")
				}
			}
		}
	}
}
