package audit

import (
	"context"
	"strconv"
	"sync"
)

// MemoryLogger keeps events in memory. Tests use it to assert on what was
// recorded.
type MemoryLogger struct {
	mu     sync.Mutex
	events []AuditEvent
}

// NewMemoryLogger creates an empty in-memory audit logger
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

// Log records event
func (m *MemoryLogger) Log(ctx context.Context, event *AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
	return nil
}

// LogAuthentication records an authentication event
func (m *MemoryLogger) LogAuthentication(ctx context.Context, eventType EventType, userID *int64, username string, status EventStatus, message string) error {
	event := buildBaseEvent(ctx, eventType, status)
	event.UserID = userID
	event.Username = username
	event.ResourceType = ResourceTypeUser
	event.Message = message
	return m.Log(ctx, event)
}

// LogAuthorization records an authorization event
func (m *MemoryLogger) LogAuthorization(ctx context.Context, eventType EventType, userID *int64, resourceType ResourceType, resourceID string, status EventStatus, message string) error {
	event := buildBaseEvent(ctx, eventType, status)
	event.UserID = userID
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Message = message
	return m.Log(ctx, event)
}

// LogAdminAction records an action on a user account
func (m *MemoryLogger) LogAdminAction(ctx context.Context, eventType EventType, actorID *int64, targetUserID int64, changes *ChangeDetails, message string) error {
	event := buildBaseEvent(ctx, eventType, EventStatusSuccess)
	event.UserID = actorID
	event.ResourceType = ResourceTypeUser
	event.ResourceID = strconv.FormatInt(targetUserID, 10)
	event.Changes = changes
	event.Message = message
	return m.Log(ctx, event)
}

// Events returns a copy of the recorded events
func (m *MemoryLogger) Events() []AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AuditEvent, len(m.events))
	copy(out, m.events)
	return out
}

// EventsOfType returns the recorded events of a single type
func (m *MemoryLogger) EventsOfType(eventType EventType) []AuditEvent {
	var out []AuditEvent
	for _, e := range m.Events() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Close is a no-op
func (m *MemoryLogger) Close() error {
	return nil
}
