// Package events contains the WebSocket message contracts pushed to
// dashboard clients.
package events

import (
	"time"

	"oispurts/pkg/contracts/domain"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// MessageTypeCollectionComplete is sent after every collection cycle
	MessageTypeCollectionComplete MessageType = "collection:complete"

	// MessageTypeDayRollover is sent when the live store switches dates
	MessageTypeDayRollover MessageType = "store:rollover"

	// MessageTypeConnect greets a newly registered client
	MessageTypeConnect MessageType = "connect"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// CollectionEvent is the payload of MessageTypeCollectionComplete
type CollectionEvent struct {
	Result domain.CollectionResult `json:"result"`
	Movers []domain.ListEntry      `json:"movers,omitempty"`
	Date   string                  `json:"date"`
}

// RolloverEvent is the payload of MessageTypeDayRollover
type RolloverEvent struct {
	PreviousDate string `json:"previous_date"`
	CurrentDate  string `json:"current_date"`
}
