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
)

// Evaluation event types.
const (
	TypePaperEvaluated = "paper.evaluated"
	TypePaperReset     = "paper.reset"
)

// PaperEvent announces that a paper changed grading state.
type PaperEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	PaperID     string    `json:"paper_id"`
	Evaluated   bool      `json:"evaluated"`
	Submissions int       `json:"submissions"`
	Source      string    `json:"source"`
	SentAt      time.Time `json:"sent_at"`
}

// Publisher fans paper events out to the configured brokers.
type Publisher interface {
	Publish(ctx context.Context, event PaperEvent) error
}

type brokerPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	now          func() time.Time
}

// NewPublisher builds a publisher for channelBase (e.g. "peak:papers"). Either broker may be nil.
func NewPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string) Publisher {
	if channelBase == "" {
		channelBase = "peak:papers"
	}

	return &brokerPublisher{
		redis:        redisClient,
		redisChannel: channelBase + ":events",
		nats:         natsConn,
		natsSubject:  strings.ReplaceAll(channelBase, ":", ".") + ".events",
		nodeID:       uuid.NewString(),
		now:          time.Now,
	}
}

func (p *brokerPublisher) Publish(ctx context.Context, event PaperEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.Source = p.nodeID
	event.SentAt = p.now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error
	if p.redis != nil {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.nats != nil {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
