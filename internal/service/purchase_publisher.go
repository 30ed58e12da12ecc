// Package service holds outbound integrations of the seat-hold gateway.
package service

import (
    "context"
    "encoding/json"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/event-seat-hold/internal/model"
    "github.com/iliyamo/event-seat-hold/internal/queue"
)

// PurchasePublisher announces confirmed purchases on RabbitMQ.  A connection
// is dialled per purchase; purchases are rare next to seat toggles and a
// per-call dial survives broker restarts without reconnect bookkeeping.
type PurchasePublisher struct {
    url string
    log *logrus.Entry
}

func NewPurchasePublisher(url string, log *logrus.Entry) *PurchasePublisher {
    if log == nil {
        log = logrus.NewEntry(logrus.StandardLogger())
    }
    return &PurchasePublisher{url: url, log: log.WithField("component", "purchase_publisher")}
}

// PurchaseConfirmed publishes p as a persistent message on the
// purchase.confirmed queue.  Errors are logged and returned; the sale itself
// has already been committed.
func (p *PurchasePublisher) PurchaseConfirmed(ctx context.Context, purchase model.Purchase) error {
    entry := p.log.WithField("purchase_id", purchase.ID)
    body, err := json.Marshal(queue.NewPurchaseConfirmedEvent(purchase))
    if err != nil {
        entry.WithError(err).Error("marshal purchase event failed")
        return err
    }

    conn, err := amqp.Dial(p.url)
    if err != nil {
        entry.WithError(err).Warn("dial broker failed")
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        entry.WithError(err).Warn("channel open failed")
        return err
    }
    defer func() { _ = ch.Close() }()

    // Idempotent; durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(queue.PurchaseQueueName, true, false, false, false, nil); err != nil {
        entry.WithError(err).Warn("queue declare failed")
        return err
    }

    msg := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    purchase.ID,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", queue.PurchaseQueueName, false, false, msg); err != nil {
        entry.WithError(err).Warn("publish failed")
        return err
    }
    entry.Debug("purchase event published")
    return nil
}
