// Package queue contains the background consumer that listens to the
// account.emails queue and hands each event to the mail/SMS delivery API.
package queue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EmailQueueName is the durable queue all account flows publish to.
const EmailQueueName = "account.emails"

// Dispatcher delivers one event. The default implementation posts to an HTTP
// template-mail API; tests substitute their own.
type Dispatcher func(ev EmailEvent) error

// StartEmailConsumer connects to RabbitMQ, declares the account.emails queue
// (durable), and starts consuming messages. Every event is appended to
// logs/email.log and, when a delivery endpoint is configured, handed to the
// dispatcher. The function runs a reconnect loop with capped backoff and
// keeps running through broker restarts; a message that cannot be processed
// is rejected without requeue so a poison payload cannot wedge the queue.
func StartEmailConsumer(amqpURL string, dispatch Dispatcher) {
	if dispatch == nil {
		dispatch = NewHTTPDispatcher(os.Getenv("EMAIL_API_URL"), os.Getenv("EMAIL_API_KEY"))
	}

	backoff := time.Second
	for {
		conn, err := amqp.Dial(amqpURL)
		if err != nil {
			log.Printf("email-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, dispatch); err != nil {
			log.Printf("email-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection, dispatch Dispatcher) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("email-consumer: set QoS failed: %v", err)
	}

	_, err = ch.QueueDeclare(EmailQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(EmailQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body, dispatch); err != nil {
			log.Printf("email-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte, dispatch Dispatcher) error {
	var ev EmailEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := appendDeliveryLog(ev); err != nil {
		return err
	}
	return dispatch(ev)
}

// appendDeliveryLog writes a single line per event to logs/email.log so
// deliveries can be audited even when the external API is down.
func appendDeliveryLog(ev EmailEvent) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join("logs", "email.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] kind=%s to=%s name=%q expires=%s\n",
		time.Now().UTC().Format(time.RFC3339), ev.Kind, ev.To, ev.Name, ev.ExpiresAt)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// NewHTTPDispatcher returns a Dispatcher that posts events to a template-mail
// HTTP API. With an empty endpoint it becomes a no-op beyond the delivery
// log, which keeps local development working without mail credentials.
func NewHTTPDispatcher(endpoint, apiKey string) Dispatcher {
	client := &http.Client{Timeout: 10 * time.Second}
	return func(ev EmailEvent) error {
		if endpoint == "" {
			return nil
		}
		body, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("deliver: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("deliver: unexpected status %d", resp.StatusCode)
		}
		return nil
	}
}
