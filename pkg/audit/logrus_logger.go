package audit

import (
	"context"
	"io"
	"strconv"

	"github.com/sirupsen/logrus"
)

// LogrusLogger writes audit events as JSON lines through logrus
type LogrusLogger struct {
	logger *logrus.Logger
}

// NewLogrusLogger creates an audit logger writing JSON to out
func NewLogrusLogger(out io.Writer) *LogrusLogger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})
	logger.SetLevel(logrus.InfoLevel)

	return &LogrusLogger{logger: logger}
}

// Log writes a single event. Denied and failed events are written at warn.
func (l *LogrusLogger) Log(ctx context.Context, event *AuditEvent) error {
	fields := logrus.Fields{
		"audit":      true,
		"event_type": string(event.EventType),
		"status":     string(event.Status),
		"timestamp":  event.Timestamp,
	}
	if event.UserID != nil {
		fields["user_id"] = *event.UserID
	}
	if event.Username != "" {
		fields["username"] = event.Username
	}
	if event.ResourceType != "" {
		fields["resource_type"] = string(event.ResourceType)
		fields["resource_id"] = event.ResourceID
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}
	if event.Changes != nil {
		fields["changes"] = event.Changes
	}

	entry := l.logger.WithFields(fields)
	switch event.Status {
	case EventStatusDenied, EventStatusFailure:
		entry.Warn(event.Message)
	default:
		entry.Info(event.Message)
	}
	return nil
}

// LogAuthentication logs an authentication event
func (l *LogrusLogger) LogAuthentication(ctx context.Context, eventType EventType, userID *int64, username string, status EventStatus, message string) error {
	event := buildBaseEvent(ctx, eventType, status)
	event.UserID = userID
	event.Username = username
	event.ResourceType = ResourceTypeUser
	if userID != nil {
		event.ResourceID = strconv.FormatInt(*userID, 10)
	}
	event.Message = message
	return l.Log(ctx, event)
}

// LogAuthorization logs an authorization event
func (l *LogrusLogger) LogAuthorization(ctx context.Context, eventType EventType, userID *int64, resourceType ResourceType, resourceID string, status EventStatus, message string) error {
	event := buildBaseEvent(ctx, eventType, status)
	event.UserID = userID
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Message = message
	return l.Log(ctx, event)
}

// LogAdminAction logs an action performed on a user account
func (l *LogrusLogger) LogAdminAction(ctx context.Context, eventType EventType, actorID *int64, targetUserID int64, changes *ChangeDetails, message string) error {
	status := EventStatusSuccess
	if eventType == EventTypeAccountDisableBlocked {
		status = EventStatusDenied
	}

	event := buildBaseEvent(ctx, eventType, status)
	event.UserID = actorID
	event.ResourceType = ResourceTypeUser
	event.ResourceID = strconv.FormatInt(targetUserID, 10)
	event.Changes = changes
	event.Message = message
	return l.Log(ctx, event)
}

// Close is a no-op; logrus writes synchronously
func (l *LogrusLogger) Close() error {
	return nil
}
