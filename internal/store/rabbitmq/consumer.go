package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/careerbot/internal/logx"
)

// Handler processes one job. A non-nil error schedules a retry.
type Handler func(ctx context.Context, jobID string) error

// Delivery is the part of amqp.Delivery the consumer acts on.
type Delivery interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type ConsumerConfig struct {
	Queue       string
	Concurrency int
	MaxRetries  int
	RetryDelay  time.Duration
}

// Consumer runs a bounded worker pool over one queue. Failed jobs are
// republished to the retry queue until MaxRetries, then dead-lettered.
type Consumer struct {
	cfg       ConsumerConfig
	conn      *amqp.Connection
	ch        *amqp.Channel
	publisher *Publisher
	handle    Handler
}

func NewConsumer(url string, cfg ConsumerConfig, handle Handler) (*Consumer, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := DeclareTopology(ch, cfg.Queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Qos(cfg.Concurrency, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	// retries go out on a separate channel so a publish error cannot close the consuming one
	pubCh, err := conn.Channel()
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Consumer{
		cfg:       cfg,
		conn:      conn,
		ch:        ch,
		publisher: &Publisher{ch: pubCh, queue: cfg.Queue},
		handle:    handle,
	}, nil
}

func (c *Consumer) Close() error {
	_ = c.publisher.Close()
	_ = c.ch.Close()
	return c.conn.Close()
}

// Run consumes until ctx is cancelled or the broker closes the delivery channel,
// then waits for in-flight jobs.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	logx.Info().Str("queue", c.cfg.Queue).Int("concurrency", c.cfg.Concurrency).Msg("worker started")

	jobs := make(chan amqp.Delivery, c.cfg.Concurrency*2)
	var wg sync.WaitGroup
	wg.Add(c.cfg.Concurrency)
	for i := 0; i < c.cfg.Concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				c.process(ctx, workerID, d, d.Body, d.Headers)
			}
		}(i)
	}

	defer func() {
		close(jobs)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			logx.Info().Msg("worker shutting down")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			jobs <- d
		}
	}
}

func (c *Consumer) process(ctx context.Context, workerID int, d Delivery, body []byte, headers amqp.Table) {
	var m JobMessage
	if err := json.Unmarshal(body, &m); err != nil || m.JobID == "" {
		logx.Warn().Err(err).Int("worker", workerID).Msg("bad message, dead-lettering")
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	err := c.handle(ctx, m.JobID)
	cost := time.Since(start)
	if err == nil {
		if cost > 2*time.Second {
			logx.Info().Str("job_id", m.JobID).Dur("cost", cost).Msg("slow job")
		}
		if err := d.Ack(false); err != nil {
			logx.Warn().Err(err).Str("job_id", m.JobID).Msg("ack failed")
		}
		return
	}

	attempt := retryCount(headers) + 1
	log := logx.Warn().Err(err).Int("worker", workerID).Str("job_id", m.JobID).Int("attempt", attempt).Dur("cost", cost)
	if attempt > c.cfg.MaxRetries {
		log.Msg("job failed, dead-lettering")
		_ = d.Nack(false, false)
		return
	}

	// back off linearly: delay * attempt
	msg := newPublishing(body, attempt, c.cfg.RetryDelay*time.Duration(attempt))
	if perr := c.publisher.publish(context.WithoutCancel(ctx), RetryQueue(c.cfg.Queue), msg); perr != nil {
		log.AnErr("publish_err", perr).Msg("retry publish failed, requeueing")
		_ = d.Nack(false, true)
		return
	}
	log.Msg("job failed, scheduled retry")
	_ = d.Ack(false)
}
