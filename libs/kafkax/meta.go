package kafkax

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

// Header keys carried on every message published by the booking-service.
const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
)

// NewEventMessage builds a message whose topic is the event type, keyed by
// aggregate so all events for one booking land on the same partition.
func NewEventMessage(eventID, eventType, aggregateID string, payload []byte) kafka.Message {
	return kafka.Message{
		Topic: eventType,
		Key:   []byte(aggregateID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(eventID)},
			{Key: HeaderEventType, Value: []byte(eventType)},
		},
	}
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
