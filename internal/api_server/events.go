package apiserver

import (
	"github.com/bd2kgenomics/spinnaker/internal/config"
	"github.com/bd2kgenomics/spinnaker/internal/events"
)

// newEventProducer writes to kafka when brokers are configured, to stdout otherwise.
func newEventProducer(cfg *config.Config) *events.EventProducer {
	kafkaCfg := cfg.Service.Kafka

	var writer events.Writer = &events.StdoutWriter{}
	if len(kafkaCfg.Brokers) > 0 {
		writer = events.NewKafkaWriter(kafkaCfg.Brokers, kafkaCfg.ClientID)
	}

	return events.NewEventProducer(writer, events.WithOutputTopic(kafkaCfg.Topic))
}
