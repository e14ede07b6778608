package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockcheck/internal/domain/models"
)

// DigestBuilder renders the end-of-day summary.
type DigestBuilder interface {
	DailyDigest(ctx context.Context, day time.Time) (string, error)
}

// Notifier posts plain messages to a chat.
type Notifier interface {
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	digest   DigestBuilder
	notifier Notifier
	chatID   int64
	logger   *zap.Logger
	now      func() time.Time
}

// NewScheduler creates a scheduler posting the daily digest to chatID on a
// standard 5-field cron schedule evaluated in loc.
func NewScheduler(schedule string, loc *time.Location, chatID int64, digest DigestBuilder, notifier Notifier, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		schedule: schedule,
		digest:   digest,
		notifier: notifier,
		chatID:   chatID,
		logger:   logger,
		now:      time.Now,
	}
}

// Start registers the digest job and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("schedule", s.schedule))

	if _, err := s.cron.AddFunc(s.schedule, s.sendDailyDigest); err != nil {
		return fmt.Errorf("schedule daily digest %q: %w", s.schedule, err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sendDailyDigest() {
	s.logger.Info("generating daily digest")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.RunDigest(ctx); err != nil {
		s.logger.Error("daily digest failed", zap.Error(err))
		return
	}
	s.logger.Info("daily digest sent successfully")
}

// RunDigest builds and posts today's digest immediately.
func (s *Scheduler) RunDigest(ctx context.Context) error {
	text, err := s.digest.DailyDigest(ctx, s.now())
	if err != nil {
		return fmt.Errorf("build digest: %w", err)
	}

	req := models.OutboundMessageRequest{ChatID: s.chatID, Message: text}
	if err := s.notifier.SendOutbound(ctx, req); err != nil {
		return fmt.Errorf("send digest: %w", err)
	}
	return nil
}
