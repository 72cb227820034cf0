// Package broker is the optional cross-instance fanout bridge. A single
// process holds its room memberships in memory, so a peer instance's
// dispatch cannot reach connections here; the bridge mirrors every live
// room publish onto a topic exchange keyed by room id and replays what
// peers publish into the local registry. It mitigates, not solves, the
// multi-instance limitation: the bridge is off unless an AMQP URL is
// configured.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// roomEnvelope is the wire format shared by both ends of the bridge.
type roomEnvelope struct {
	Room  string          `json:"room"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// LiveReplayer accepts a mirrored publish from a peer instance.
type LiveReplayer interface {
	Publish(room, event string, data any) int
}

// Bridge publishes and consumes room events on a topic exchange. Messages
// carry the publishing instance's id so Mirror can skip its own traffic.
type Bridge struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	queue      string
	instanceID string
}

// Dial connects to the broker and declares the topic exchange. RabbitMQ can
// take a while to come up, so the dial retries briefly.
func Dial(url, exchange string) (*Bridge, error) {
	var conn *amqp.Connection
	var err error
	for i := 0; i < 10; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		log.Printf("broker: dial failed, retrying in 2s... (%d/10)", i+1)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	// Per-instance exclusive queue bound to every room.
	q, err := ch.QueueDeclare(
		"",    // server-generated name
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "#", exchange, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	return &Bridge{
		conn:       conn,
		channel:    ch,
		exchange:   exchange,
		queue:      q.Name,
		instanceID: uuid.New().String(),
	}, nil
}

// PublishRoom mirrors one room payload to peers. The routing key is the
// room id with ':' mapped to '.', so peers could bind selectively.
func (b *Bridge) PublishRoom(ctx context.Context, room string, payload []byte) error {
	return b.channel.PublishWithContext(ctx,
		b.exchange,
		routingKey(room),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			AppId:       b.instanceID,
			Body:        payload,
			Timestamp:   time.Now(),
		})
}

// Mirror consumes peer publishes and replays them into the local registry
// until the context is cancelled. Runs as a goroutine from main.
func (b *Bridge) Mirror(ctx context.Context, replayer LiveReplayer) error {
	msgs, err := b.channel.Consume(
		b.queue,
		"",    // consumer tag
		true,  // auto-ack: live traffic is best-effort, a lost message is fine
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if msg.AppId == b.instanceID {
				continue
			}
			var env roomEnvelope
			if err := json.Unmarshal(msg.Body, &env); err != nil {
				log.Printf("broker: bad envelope: %v", err)
				continue
			}
			replayer.Publish(env.Room, env.Event, env.Data)
		}
	}
}

// Close shuts the channel and connection down.
func (b *Bridge) Close() {
	if b.channel != nil {
		_ = b.channel.Close()
	}
	if b.conn != nil {
		_ = b.conn.Close()
	}
}

func routingKey(room string) string {
	out := []byte(room)
	for i, c := range out {
		if c == ':' {
			out[i] = '.'
		}
	}
	return string(out)
}
