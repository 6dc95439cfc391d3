package websocket

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics records live feed activity
type OTelMetrics struct {
	connectionsTotal   metric.Int64Counter
	connectionDuration metric.Float64Histogram
	messagesTotal      metric.Int64Counter
	messageBytes       metric.Int64Counter
	droppedMessages    metric.Int64Counter
	clientCount        metric.Int64Gauge
}

// NewOTelMetrics registers the feed instruments on meter
func NewOTelMetrics(meter metric.Meter) (*OTelMetrics, error) {
	connectionsTotal, err := meter.Int64Counter(
		"oispurts_websocket_connections",
		metric.WithDescription("Total number of WebSocket connections"),
	)
	if err != nil {
		return nil, err
	}

	connectionDuration, err := meter.Float64Histogram(
		"oispurts_websocket_connection_duration",
		metric.WithDescription("Duration of WebSocket connections"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	messagesTotal, err := meter.Int64Counter(
		"oispurts_websocket_messages",
		metric.WithDescription("Total number of WebSocket messages sent"),
	)
	if err != nil {
		return nil, err
	}

	messageBytes, err := meter.Int64Counter(
		"oispurts_websocket_message_bytes",
		metric.WithDescription("Total bytes of WebSocket messages sent"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	droppedMessages, err := meter.Int64Counter(
		"oispurts_websocket_dropped_messages",
		metric.WithDescription("Messages dropped because a client or the hub queue was full"),
	)
	if err != nil {
		return nil, err
	}

	clientCount, err := meter.Int64Gauge(
		"oispurts_websocket_clients",
		metric.WithDescription("Current number of connected WebSocket clients"),
	)
	if err != nil {
		return nil, err
	}

	return &OTelMetrics{
		connectionsTotal:   connectionsTotal,
		connectionDuration: connectionDuration,
		messagesTotal:      messagesTotal,
		messageBytes:       messageBytes,
		droppedMessages:    droppedMessages,
		clientCount:        clientCount,
	}, nil
}

// RecordConnection counts a registered client
func (m *OTelMetrics) RecordConnection(ctx context.Context, clients int) {
	if m == nil {
		return
	}
	m.connectionsTotal.Add(ctx, 1)
	m.clientCount.Record(ctx, int64(clients))
}

// RecordDisconnection records how long a client stayed connected
func (m *OTelMetrics) RecordDisconnection(ctx context.Context, duration time.Duration, clients int, reason string) {
	if m == nil {
		return
	}
	m.connectionDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("disconnect_reason", reason)))
	m.clientCount.Record(ctx, int64(clients))
}

// RecordMessageSent counts a frame written to a client
func (m *OTelMetrics) RecordMessageSent(ctx context.Context, messageType string, size int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("message_type", messageType))
	m.messagesTotal.Add(ctx, 1, attrs)
	m.messageBytes.Add(ctx, int64(size), attrs)
}

// RecordDropped counts messages that never reached a client
func (m *OTelMetrics) RecordDropped(ctx context.Context, where string) {
	if m == nil {
		return
	}
	m.droppedMessages.Add(ctx, 1, metric.WithAttributes(attribute.String("where", where)))
}
