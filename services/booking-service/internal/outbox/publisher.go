package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/slotledger/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotledger/libs/otel"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type recordStore interface {
	FetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error)
	MarkPublished(ctx context.Context, tx pgx.Tx, ids []int64) error
	PrunePublished(ctx context.Context, db Execer, before time.Time) (int64, error)
}

// Publisher relays committed booking events from outbox_events to Kafka and
// prunes rows that were published longer than Retention ago.
type Publisher struct {
	pool       txBeginner
	repo       recordStore
	logger     *slog.Logger
	brokers    []string
	pollEvery  time.Duration
	pruneEvery time.Duration
	retention  time.Duration
	batchSize  int
	now        func() time.Time
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
	// Retention keeps published rows around for inspection before pruning.
	Retention time.Duration
}

func NewPublisher(pool txBeginner, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	return &Publisher{
		pool:       pool,
		repo:       repo,
		logger:     logger,
		brokers:    kafkax.SplitBrokers(cfg.Brokers),
		pollEvery:  cfg.PollEvery,
		pruneEvery: time.Hour,
		retention:  cfg.Retention,
		batchSize:  cfg.BatchSize,
		now:        time.Now,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()
	pruneTicker := time.NewTicker(p.pruneEvery)
	defer pruneTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.publishBatch(ctx, writer)
			if err != nil {
				p.logger.Error("outbox publish failed", "err", err)
				continue
			}
			if n > 0 {
				p.logger.Debug("outbox batch published", "events", n)
			}
		case <-pruneTicker.C:
			if _, err := p.prune(ctx); err != nil {
				p.logger.Error("outbox prune failed", "err", err)
			}
		}
	}
}

func (p *Publisher) publishBatch(ctx context.Context, writer messageWriter) (int, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, tx.Commit(ctx)
	}

	msgs := make([]kafka.Message, 0, len(records))
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, toMessage(ctx, r))
		ids = append(ids, r.ID)
	}
	if err := writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, err
	}
	if err := p.repo.MarkPublished(ctx, tx, ids); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	for _, m := range msgs {
		p.logger.Debug("outbox event published", "topic", m.Topic,
			"event_id", kafkax.HeaderValue(m.Headers, kafkax.HeaderEventID))
	}
	return len(records), nil
}

func (p *Publisher) prune(ctx context.Context) (int64, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	n, err := p.repo.PrunePublished(ctx, tx, p.now().Add(-p.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.logger.Info("outbox pruned", "events", n)
	}
	return n, tx.Commit(ctx)
}

func toMessage(ctx context.Context, r Record) kafka.Message {
	msgCtx := otelx.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate)
	msg := kafkax.NewEventMessage(r.EventID, r.EventType, r.AggregateID, r.Payload)
	msg.Headers = kafkax.InjectTraceHeaders(msgCtx, msg.Headers)
	return msg
}
