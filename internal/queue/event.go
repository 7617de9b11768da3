// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns completed orders into ledger decrements.
package queue

import "github.com/iliyamo/class-booking/internal/model"

// Queue names.  Both queues are durable.
const (
	OrderCompletedQueue   = "order.completed"
	BookingCompletedQueue = "booking.completed"
)

// OrderCompletedEvent is published by the order platform once an order is
// paid.  It is the same payload the order webhook accepts.
type OrderCompletedEvent struct {
	OrderID string            `json:"orderId"`
	Lines   []model.OrderLine `json:"lines"`
}

// BookingCompletedEvent is published after the ledger has consumed seats
// for one order line.  It carries enough for downstream consumers (mailers,
// analytics) to act without querying the primary database.
type BookingCompletedEvent struct {
	OrderID           string `json:"order_id"`
	LineNo            int    `json:"line_no"`
	SessionID         uint64 `json:"session_id"`
	ClassID           uint64 `json:"class_id"`
	Date              string `json:"date"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	Persons           int    `json:"persons"`
	RemainingCapacity int    `json:"remaining_capacity"`
	CompletedAt       string `json:"completed_at"`
}
