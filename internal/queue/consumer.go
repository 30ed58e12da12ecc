package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"
)

// PurchaseLogFile is the file, under the consumer's directory, that purchase
// lines are appended to.
const PurchaseLogFile = "purchase.log"

// Consumer drains the purchase.confirmed queue into an append-only log file.
type Consumer struct {
    url string
    dir string
    log *logrus.Entry
}

// NewConsumer returns a consumer for the broker at url writing to dir
// (default "logs").
func NewConsumer(url, dir string, log *logrus.Entry) *Consumer {
    if dir == "" {
        dir = "logs"
    }
    if log == nil {
        log = logrus.NewEntry(logrus.StandardLogger())
    }
    return &Consumer{url: url, dir: dir, log: log.WithField("component", "purchase_consumer")}
}

// Start connects to RabbitMQ, declares the durable queue and consumes until
// ctx is cancelled.  Lost connections are re-dialled with exponential backoff
// capped at 30s.  Messages that cannot be recorded are rejected without
// requeue so one bad payload cannot wedge the queue.
func (c *Consumer) Start(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.WithError(err).Warnf("dial broker failed, retrying in %s", backoff)
            if !sleepCtx(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            c.log.Info("purchase consumer stopped")
            return ctx.Err()
        }
        c.log.WithError(err).Warn("consume loop ended, reconnecting")
        if !sleepCtx(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.WithError(err).Warn("set QoS failed")
    }
    if _, err := ch.QueueDeclare(PurchaseQueueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.ConsumeWithContext(ctx, PurchaseQueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }
    c.log.WithField("queue", PurchaseQueueName).Info("purchase consumer started")

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.handleMessage(d.Body); err != nil {
                c.log.WithError(err).Error("handle message failed")
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func (c *Consumer) handleMessage(body []byte) error {
    var ev PurchaseConfirmedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.PurchaseID == "" || ev.EventID == 0 {
        return errors.New("purchase event without id or event")
    }
    if err := os.MkdirAll(c.dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", c.dir, err)
    }
    f, err := os.OpenFile(filepath.Join(c.dir, PurchaseLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    line := fmt.Sprintf("[%s] Purchase confirmed | purchase_id=%s | user_id=%s | event_id=%d | total=%d cents | seats=[%s]\n",
        ev.ConfirmedAt, ev.PurchaseID, ev.UserID, ev.EventID, ev.TotalCents, strings.Join(ev.Positions, ","))
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
