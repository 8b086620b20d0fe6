package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule обход продлений раз в сутки в полночь
const DefaultSchedule = "0 0 * * *"

// Renewer выполняет один обход продлений
type Renewer interface {
	CheckRenewals(ctx context.Context) ([]*domain.Subscription, error)
}

// RenewalScheduler запускает обход продлений по расписанию cron.
// Новый запуск пропускается, пока предыдущий не завершился.
type RenewalScheduler struct {
	cron     *cron.Cron
	renewer  Renewer
	schedule string
	timeout  time.Duration
	log      *logger.Logger
	entryID  cron.EntryID
}

// NewRenewalScheduler создает планировщик. Пустое расписание заменяется на DefaultSchedule.
func NewRenewalScheduler(renewer Renewer, schedule string, timeout time.Duration, log *logger.Logger) (*RenewalScheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	cronLog := cronLogger{log: log}
	c := cron.New(cron.WithLogger(cronLog), cron.WithChain(
		cron.Recover(cronLog),
		cron.SkipIfStillRunning(cronLog),
	))

	s := &RenewalScheduler{
		cron:     c,
		renewer:  renewer,
		schedule: schedule,
		timeout:  timeout,
		log:      log,
	}

	id, err := c.AddFunc(schedule, s.Run)
	if err != nil {
		return nil, fmt.Errorf("invalid renewal schedule %q: %w", schedule, err)
	}
	s.entryID = id
	return s, nil
}

// Run выполняет один обход. Используется cron и может вызываться напрямую.
func (s *RenewalScheduler) Run() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	renewed, err := s.renewer.CheckRenewals(ctx)
	if err != nil {
		s.log.Errorw("Scheduled renewal sweep failed", "error", err)
		return
	}
	s.log.Infow("Scheduled renewal sweep completed", "renewed", len(renewed))
}

// Start запускает планировщик в фоне
func (s *RenewalScheduler) Start() {
	s.cron.Start()
	s.log.Infow("Renewal scheduler started", "schedule", s.schedule, "next", s.cron.Entry(s.entryID).Next)
}

// Stop останавливает планировщик и ждет завершения текущего обхода либо отмены ctx
func (s *RenewalScheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		s.log.Info("Renewal scheduler stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("Renewal scheduler did not stop in time")
		return ctx.Err()
	}
}

// cronLogger адаптирует logger.Logger к cron.Logger
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
