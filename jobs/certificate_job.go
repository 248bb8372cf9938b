package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/Mustafaygtbs/CertificateManagement/logging"
	"github.com/robfig/cron/v3"
)

type CertificateIssuer interface {
	IssuePendingCertificates(ctx context.Context) (int, error)
}

// PendingCertificatesJob mails certificates to students marked complete after
// their course was completed.
type PendingCertificatesJob struct {
	issuer  CertificateIssuer
	timeout time.Duration
	log     *slog.Logger
}

func NewPendingCertificatesJob(issuer CertificateIssuer, timeout time.Duration, log *slog.Logger) *PendingCertificatesJob {
	return &PendingCertificatesJob{issuer: issuer, timeout: timeout, log: log}
}

func (j *PendingCertificatesJob) Run() {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	j.log.Debug("job_started", slog.String("job", "pending_certificates"))
	sent, err := j.issuer.IssuePendingCertificates(ctx)
	if err != nil {
		j.log.Error("job_failed", slog.String("job", "pending_certificates"), slog.Int("sent", sent), logging.Err(err))
		return
	}
	if sent > 0 {
		j.log.Info("pending_certificates_sent", slog.Int("sent", sent))
	}
}

// NewScheduler returns a cron that logs through log, recovers panics and
// skips a run while the previous one is still going.
func NewScheduler(log *slog.Logger) *cron.Cron {
	l := cronLogger{log: log}
	return cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
}

type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron_"+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron_"+msg, append(keysAndValues, "err", err.Error())...)
}
