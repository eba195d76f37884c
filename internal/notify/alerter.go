package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mvillareal/intake-scheduler/internal/state"
	"github.com/mvillareal/intake-scheduler/pkg/logging"
)

const alertSentPrefix = "alert:sent:"

// Alerter emails the operator about scheduler failures, at most once per
// error class per interval. Every failure is still recorded in the rolling
// error log regardless of whether an email goes out.
type Alerter struct {
	sender      EmailSender
	redis       *redis.Client
	states      *state.Store
	to          string
	minInterval time.Duration
	logger      *logging.Logger
	now         func() time.Time
}

// NewAlerter builds an Alerter. sender may be a StubEmailSender when email
// delivery is disabled.
func NewAlerter(sender EmailSender, redisClient *redis.Client, states *state.Store, to string, minInterval time.Duration, logger *logging.Logger) *Alerter {
	if logger == nil {
		logger = logging.Default()
	}
	if minInterval <= 0 {
		minInterval = 24 * time.Hour
	}
	return &Alerter{
		sender:      sender,
		redis:       redisClient,
		states:      states,
		to:          to,
		minInterval: minInterval,
		logger:      logger,
		now:         time.Now,
	}
}

// WithNow overrides the clock. Test hook.
func (a *Alerter) WithNow(now func() time.Time) *Alerter {
	a.now = now
	return a
}

// AlertError records err under class and, when the class has not alerted
// within the interval, emails the operator. It never returns the original
// error; alerting is always best-effort on top of the failure being handled.
func (a *Alerter) AlertError(ctx context.Context, class string, err error) {
	if err == nil {
		return
	}
	entry := state.ErrorEntry{At: a.now().UTC(), Class: class, Message: err.Error()}
	if a.states != nil {
		if logErr := a.states.AppendError(ctx, entry); logErr != nil {
			a.logger.Warn("alerter: append error log", "error", logErr)
		}
	}

	ok, redisErr := a.redis.SetNX(ctx, alertSentPrefix+class, entry.At.Format(time.RFC3339), a.minInterval).Result()
	if redisErr != nil {
		a.logger.Warn("alerter: rate-limit check", "class", class, "error", redisErr)
		return
	}
	if !ok {
		// Already alerted for this class within the interval.
		return
	}

	msg := EmailMessage{
		To:      a.to,
		Subject: fmt.Sprintf("[intake-scheduler] %s failure", class),
		Body: fmt.Sprintf("Error class: %s\nTime (UTC): %s\n\n%s\n\nFurther %s failures are suppressed for %s.",
			class, entry.At.Format(time.RFC3339), err.Error(), class, a.minInterval),
	}
	if sendErr := a.sender.Send(ctx, msg); sendErr != nil {
		a.logger.Error("alerter: send", "class", class, "error", sendErr)
		return
	}
	a.logger.Info("alerter: operator notified", "class", class)
}
