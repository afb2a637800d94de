package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SessionMetrics provides observability for the room synchronization hub
type SessionMetrics struct {
	connectionsActive  metric.Int64UpDownCounter
	roomsActive        metric.Int64UpDownCounter
	participantsActive metric.Int64UpDownCounter
	messagesReceived   metric.Int64Counter
	messagesDropped    metric.Int64Counter
	broadcastsTotal    metric.Int64Counter
	operationsApplied  metric.Int64Counter
	roomLifetime       metric.Float64Histogram
}

// NewSessionMetrics creates the hub metric instruments. It uses the globally
// installed meter provider, so with no telemetry service configured every
// instrument is a no-op.
func NewSessionMetrics() (*SessionMetrics, error) {
	meter := otel.GetMeterProvider().Meter("boardsync/session")
	mb := newMetricBuilder(meter)

	m := &SessionMetrics{
		connectionsActive: mb.Int64UpDownCounter(
			"boardsync_connections_active",
			"Number of open WebSocket connections", "1"),
		roomsActive: mb.Int64UpDownCounter(
			"boardsync_rooms_active",
			"Number of live rooms in the registry", "1"),
		participantsActive: mb.Int64UpDownCounter(
			"boardsync_participants_active",
			"Number of participants across all rooms", "1"),
		messagesReceived: mb.Int64Counter(
			"boardsync_messages_received_total",
			"Inbound WebSocket messages by type", "1"),
		messagesDropped: mb.Int64Counter(
			"boardsync_messages_dropped_total",
			"Inbound messages dropped as protocol errors, by reason", "1"),
		broadcastsTotal: mb.Int64Counter(
			"boardsync_broadcasts_total",
			"Messages fanned out to room members, by type", "1"),
		operationsApplied: mb.Int64Counter(
			"boardsync_operations_applied_total",
			"Edit operations merged into canonical room state, by op type", "1"),
		roomLifetime: mb.Float64Histogram(
			"boardsync_room_lifetime_seconds",
			"Time from room creation to teardown", "s",
			[]float64{10, 30, 60, 300, 600, 1800, 3600, 7200}),
	}
	if err := mb.Error(); err != nil {
		return nil, err
	}
	return m, nil
}

// ConnectionOpened records a new WebSocket connection
func (m *SessionMetrics) ConnectionOpened(ctx context.Context) {
	m.connectionsActive.Add(ctx, 1)
}

// ConnectionClosed records a closed WebSocket connection
func (m *SessionMetrics) ConnectionClosed(ctx context.Context) {
	m.connectionsActive.Add(ctx, -1)
}

// RoomOpened records a room being created in the registry
func (m *SessionMetrics) RoomOpened(ctx context.Context) {
	m.roomsActive.Add(ctx, 1)
}

// RoomClosed records a room teardown and its lifetime
func (m *SessionMetrics) RoomClosed(ctx context.Context, createdAt time.Time) {
	m.roomsActive.Add(ctx, -1)
	m.roomLifetime.Record(ctx, time.Since(createdAt).Seconds())
}

// ParticipantJoined records a participant entering a room
func (m *SessionMetrics) ParticipantJoined(ctx context.Context) {
	m.participantsActive.Add(ctx, 1)
}

// ParticipantLeft records a participant leaving a room
func (m *SessionMetrics) ParticipantLeft(ctx context.Context) {
	m.participantsActive.Add(ctx, -1)
}

// MessageReceived records an inbound message
func (m *SessionMetrics) MessageReceived(ctx context.Context, messageType string) {
	m.messagesReceived.Add(ctx, 1, metric.WithAttributes(
		attribute.String("message_type", messageType)))
}

// MessageDropped records an inbound message dropped as a protocol error
func (m *SessionMetrics) MessageDropped(ctx context.Context, reason string) {
	m.messagesDropped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason)))
}

// Broadcast records a fan-out of one message to recipients room members
func (m *SessionMetrics) Broadcast(ctx context.Context, messageType string, recipients int) {
	m.broadcastsTotal.Add(ctx, int64(recipients), metric.WithAttributes(
		attribute.String("message_type", messageType)))
}

// OperationApplied records a merge into canonical room state
func (m *SessionMetrics) OperationApplied(ctx context.Context, opType string) {
	m.operationsApplied.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op_type", opType)))
}
