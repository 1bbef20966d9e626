package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/arunvm123/ticketinventory/model"
	"github.com/segmentio/kafka-go"
)

var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return &bytes.Buffer{}
	},
}

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// PurgePublisher puts purges that failed locally on the retry topic.
type PurgePublisher struct {
	writer MessageWriter
}

func NewPurgePublisher(writer MessageWriter) *PurgePublisher {
	return &PurgePublisher{writer: writer}
}

func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
}

// PublishPurge keys messages by event so retries for one event stay ordered.
func (p *PurgePublisher) PublishPurge(ctx context.Context, req model.PurgeRequest) error {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		jsonBufferPool.Put(buf)
	}()

	if err := json.NewEncoder(buf).Encode(req); err != nil {
		return fmt.Errorf("failed to encode purge request: %w", err)
	}

	key := req.Cause.EventID
	if key == "" {
		key = string(req.Cause.Type)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: bytes.Clone(buf.Bytes()),
	}); err != nil {
		return fmt.Errorf("failed to publish purge request: %w", err)
	}
	return nil
}

// DecodePurgeRequest parses a message written by PublishPurge.
func DecodePurgeRequest(msg kafka.Message) (model.PurgeRequest, error) {
	var req model.PurgeRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return req, fmt.Errorf("failed to unmarshal purge request: %w", err)
	}
	if len(req.Patterns) == 0 {
		return req, fmt.Errorf("purge request without patterns")
	}
	return req, nil
}
