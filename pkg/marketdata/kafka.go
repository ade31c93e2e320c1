package marketdata

import (
	"context"

	kafkawrapper "github.com/joripage/exchange-sim/pkg/kafka_wrapper"
)

const tickHeader = "book_tick"

// KafkaPublisher keys every tick by security so a consumer sees each
// book's ticks in publish order.
type KafkaPublisher struct {
	producer *kafkawrapper.Producer
}

func NewKafkaPublisher(cfg kafkawrapper.ProducerConfig) *KafkaPublisher {
	return &KafkaPublisher{producer: kafkawrapper.NewProducer(cfg)}
}

func (p *KafkaPublisher) Publish(ctx context.Context, tick Tick) error {
	return p.producer.PublishJSON(ctx, tick.Security, tick, map[string]string{"type": tickHeader})
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// KafkaTickHandler adapts a per-tick handler to a consumer group batch
// handler. Undecodable messages are skipped.
func KafkaTickHandler(handle func(context.Context, Tick) error) func(context.Context, []kafkawrapper.Message) error {
	return func(ctx context.Context, msgs []kafkawrapper.Message) error {
		for _, m := range msgs {
			if t := m.Headers["type"]; t != "" && t != tickHeader {
				continue
			}
			tick, err := DecodeTick(m.Value)
			if err != nil {
				continue
			}
			if err := handle(ctx, tick); err != nil {
				return err
			}
		}
		return nil
	}
}
