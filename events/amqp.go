package events

import (
	"bytes"
	"context"
	"encoding/gob"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"teambot/log"
)

const TeamsExchange = "teams"

// DialAMQP connects to the broker, doubling the wait between failed attempts.
func DialAMQP(url string) (*amqp.Connection, error) {
	log.Logger.Info("Trying to connect to rabbitmq...")

	var (
		conn *amqp.Connection
		err  error
	)
	t := time.Second
	for i := 0; i < 6; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		if i == 5 {
			return nil, err
		}
		log.Logger.Warn("rabbitmq dial failed", zap.Error(err), zap.Duration("retryIn", t))
		time.Sleep(t)
		t *= 2
	}
	log.Logger.Info("Connected to rabbitmq")

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()

	err = ch.ExchangeDeclare(
		TeamsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

// AMQPSink publishes gob-encoded events on the teams exchange, routed by kind.
type AMQPSink struct {
	conn *amqp.Connection
}

func NewAMQPSink(conn *amqp.Connection) *AMQPSink {
	return &AMQPSink{conn: conn}
}

func (s *AMQPSink) Name() string {
	return "amqp"
}

func (s *AMQPSink) Publish(_ context.Context, e *Event) error {
	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(e); err != nil {
		return err
	}

	ch, err := s.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	return ch.Publish(TeamsExchange, e.Kind.String(), false, false, amqp.Publishing{
		ContentType: "application/x-gob",
		MessageId:   e.ID.String(),
		Timestamp:   e.At,
		Body:        b.Bytes(),
	})
}

// Consume streams events whose kind matches bindingKey ("#" for all) until
// ctx is done.
func Consume(ctx context.Context, conn *amqp.Connection, bindingKey string) (<-chan *Event, error) {
	rch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	q, err := rch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		rch.Close()
		return nil, err
	}
	if err := rch.QueueBind(q.Name, bindingKey, TeamsExchange, false, nil); err != nil {
		rch.Close()
		return nil, err
	}
	msgs, err := rch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		rch.Close()
		return nil, err
	}

	ch := make(chan *Event)
	go func() {
		defer close(ch)
		defer rch.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					return
				}
				e := &Event{}
				if err := gob.NewDecoder(bytes.NewReader(d.Body)).Decode(e); err != nil {
					log.Logger.Error("unable to decode event", zap.Error(err))
					continue
				}
				select {
				case ch <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
