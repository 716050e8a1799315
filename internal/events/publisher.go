// Package events broadcasts grading audit events to other services.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// GradingRunEvent is published after every persisted grading attempt.
type GradingRunEvent struct {
	Source          string    `json:"source"`
	CorrelationID   string    `json:"correlation_id,omitempty"`
	RunID           uint      `json:"run_id"`
	SubmissionID    uint      `json:"submission_id"`
	AssignmentID    uint      `json:"assignment_id"`
	Status          string    `json:"status"`
	InputMode       string    `json:"input_mode,omitempty"`
	OverallGrade    string    `json:"overall_grade,omitempty"`
	FinalConfidence *float64  `json:"final_confidence,omitempty"`
	WasCapped       bool      `json:"was_capped"`
	CapsApplied     []string  `json:"caps_applied,omitempty"`
	Blockers        int       `json:"blockers"`
	ValidationErrs  int       `json:"validation_errors"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// Publisher delivers grading run events.
type Publisher interface {
	PublishGradingRun(ctx context.Context, event GradingRunEvent) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

// PublishGradingRun implements Publisher.
func (NopPublisher) PublishGradingRun(context.Context, GradingRunEvent) error { return nil }

// BusPublisher fans events out to a Redis channel and a NATS subject. Either
// transport may be nil.
type BusPublisher struct {
	redis   *redis.Client
	channel string
	nats    *nats.Conn
	subject string
	nodeID  string
	logger  zerolog.Logger
}

// NewBusPublisher derives the Redis channel and NATS subject from channelBase,
// e.g. "gema:grading" publishes on "gema:grading:run.recorded" and
// "gema.grading.run.recorded".
func NewBusPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) *BusPublisher {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":run.recorded"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".run.recorded"
	}

	return &BusPublisher{
		redis:   redisClient,
		channel: channel,
		nats:    natsConn,
		subject: subject,
		nodeID:  uuid.NewString(),
		logger:  logger.With().Str("component", "grading_events").Logger(),
	}
}

// Channel returns the Redis channel events are published on.
func (p *BusPublisher) Channel() string { return p.channel }

// Subject returns the NATS subject events are published on.
func (p *BusPublisher) Subject() string { return p.subject }

// PublishGradingRun implements Publisher. Both transports are attempted and
// their failures joined.
func (p *BusPublisher) PublishGradingRun(ctx context.Context, event GradingRunEvent) error {
	if event.Source == "" {
		event.Source = p.nodeID
	}
	if event.RecordedAt.IsZero() {
		event.RecordedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error
	if p.redis != nil && p.channel != "" {
		if err := p.redis.Publish(ctx, p.channel, payload).Err(); err != nil {
			errs = append(errs, err)
		}
	}

	if p.nats != nil && p.subject != "" {
		if err := p.nats.Publish(p.subject, payload); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		p.logger.Warn().Errs("errors", errs).Uint("run_id", event.RunID).Msg("grading event delivery incomplete")
	}
	return errors.Join(errs...)
}
