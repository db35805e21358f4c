// Package service holds the account lifecycle orchestration and its
// collaborators: the audit recorder and the email event publisher.
package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/user-account-service/internal/queue"
)

// EmailPublisher publishes EmailEvents to the durable account.emails queue.
// A publish failure never fails the flow that triggered it; the caller logs
// and moves on, and the user retries via "resend" if the mail never arrives.
type EmailPublisher struct {
	url string
}

func NewEmailPublisher(amqpURL string) *EmailPublisher {
	return &EmailPublisher{url: amqpURL}
}

// Publish marshals the event and sends it to the account.emails queue.
// Messages are marked persistent so they survive broker restarts. The
// connection is opened per publish; account flows are low-volume and this
// keeps the publisher free of reconnect bookkeeping.
func (p *EmailPublisher) Publish(ctx context.Context, event q.EmailEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		q.EmailQueueName, // name
		true,             // durable
		false,            // autoDelete
		false,            // exclusive
		false,            // noWait
		nil,              // args
	); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",               // default exchange
		q.EmailQueueName, // routing key = queue name
		false,            // mandatory
		false,            // immediate
		pub,
	); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}

	return nil
}
