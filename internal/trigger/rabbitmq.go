package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const DefaultQueue = "resume-ranker.match"

// RabbitMQ publishes tasks to a durable queue and consumes them with manual acks.
type RabbitMQ struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	queue   string
	logger  *zap.Logger
	publish sync.Mutex
}

func NewRabbitMQ(url, queue string, logger *zap.Logger) (*RabbitMQ, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	// durable, not auto-deleted, not exclusive
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	return &RabbitMQ{conn: conn, ch: ch, queue: queue, logger: logger}, nil
}

func (r *RabbitMQ) Submit(ctx context.Context, task Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	r.publish.Lock()
	defer r.publish.Unlock()

	err = r.ch.PublishWithContext(ctx, "", r.queue, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    task.ID,
		Body:         body,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("publish task for job %q: %w", task.JobID, err)
	}

	r.logger.Debug("task published", zap.String("queue", r.queue), zap.String("task_id", task.ID), zap.String("job_id", task.JobID))
	return nil
}

// Consume delivers tasks to handler until ctx is done or the channel closes.
// A failed task is requeued once; a second failure drops it.
func (r *RabbitMQ) Consume(ctx context.Context, prefetch int, handler Handler) error {
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := r.ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := r.ch.Consume(r.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	r.logger.Info("consumer started", zap.String("queue", r.queue), zap.Int("prefetch", prefetch))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			r.handle(ctx, d, handler)
		}
	}
}

func (r *RabbitMQ) handle(ctx context.Context, d amqp.Delivery, handler Handler) {
	var task Task
	if err := json.Unmarshal(d.Body, &task); err != nil {
		r.logger.Error("dropping malformed task", zap.Error(err), zap.ByteString("body", d.Body))
		if err := d.Nack(false, false); err != nil {
			r.logger.Warn("nack failed", zap.Error(err))
		}
		return
	}

	if err := handler(ctx, task); err != nil {
		requeue := !d.Redelivered
		r.logger.Error("task failed",
			zap.String("task_id", task.ID),
			zap.String("job_id", task.JobID),
			zap.Bool("requeue", requeue),
			zap.Error(err),
		)
		if err := d.Nack(false, requeue); err != nil {
			r.logger.Warn("nack failed", zap.Error(err))
		}
		return
	}

	if err := d.Ack(false); err != nil {
		r.logger.Warn("ack failed", zap.String("job_id", task.JobID), zap.Error(err))
	}
}

func (r *RabbitMQ) Close() error {
	chErr := r.ch.Close()
	connErr := r.conn.Close()
	return errors.Join(chErr, connErr)
}
