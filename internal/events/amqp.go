package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
	"github.com/tonyfindev/BinkOS-sub002/internal/logging"
)

const defaultExchange = "bink.events"

// AMQPSink publishes events to a topic exchange with routing key
// "<exchange>.<tool>", so consumers can bind per tool or to everything.
type AMQPSink struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      *slog.Logger
}

func NewAMQPSink(url, exchange string) (*AMQPSink, error) {
	if exchange == "" {
		exchange = defaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeUnavailable, "connect amqp broker", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, binkerr.Wrap(binkerr.CodeUnavailable, "open amqp channel", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		conn.Close()
		return nil, binkerr.Wrap(binkerr.CodeUnavailable, "declare amqp exchange", err)
	}
	return &AMQPSink{conn: conn, ch: ch, exchange: exchange, log: logging.Named("events.amqp")}, nil
}

// Publish is best-effort: a broker hiccup is logged, never propagated into
// the tool run.
func (s *AMQPSink) Publish(ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		s.log.Warn("encode event failed", slog.String("error", err.Error()))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = s.ch.PublishWithContext(ctx, s.exchange, s.exchange+"."+ev.Tool, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   ev.Time,
		Body:        body,
	})
	if err != nil {
		s.log.Warn("publish event failed", slog.String("error", err.Error()))
	}
}

func (s *AMQPSink) Close() error {
	if s == nil {
		return nil
	}
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
