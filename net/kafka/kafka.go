package kafka

import (
	"context"
	"crypto/tls"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"
)

// Config structure
type Config struct {
	UseTLS  bool     `mapstructure:"use_tls"`
	Brokers []string `mapstructure:"brokers"`
	Writer  WriterConfig
}

// WriterConfig structure
type WriterConfig struct {
	BatchSize    int           `mapstructure:"batch_size"`
	BatchBytes   int64         `mapstructure:"batch_bytes"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Async        bool          `mapstructure:"async"`
}

// IsConfigured reports whether at least one broker was given
func (cfg Config) IsConfigured() bool {
	return len(cfg.Brokers) > 0
}

// KafkaProducer publishes messages on a single topic
type KafkaProducer struct {
	writer *kafkaGo.Writer
	topic  string
}

// NewKafkaProducer creates a producer that partitions messages by key
func NewKafkaProducer(cfg WriterConfig, brokers []string, useTLS bool, topic string) *KafkaProducer {
	writer := &kafkaGo.Writer{
		Addr:         kafkaGo.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkaGo.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchBytes:   cfg.BatchBytes,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafkaGo.RequireOne,
		Async:        cfg.Async,
	}
	if useTLS {
		writer.Transport = &kafkaGo.Transport{
			TLS: &tls.Config{MinVersion: tls.VersionTLS12},
		}
	}
	return &KafkaProducer{writer: writer, topic: topic}
}

// Topic godoc
func (p *KafkaProducer) Topic() string {
	return p.topic
}

// WriteMessages godoc
func (p *KafkaProducer) WriteMessages(ctx context.Context, msgs ...kafkaGo.Message) error {
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close flushes pending messages and closes the writer
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
