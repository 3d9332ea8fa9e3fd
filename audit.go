package authclient

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/MrEthical07/authclient/internal/audit"
)

// AuditEvent is one client audit record. Tokens and passwords never appear in it.
type AuditEvent = audit.Event

// AuditSink receives audit events from the client's background dispatcher.
type AuditSink = audit.Sink

// NoOpSink discards every event.
type NoOpSink = audit.NoOpSink

// ChannelSink delivers events on a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per event.
type JSONWriterSink = audit.JSONWriterSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON object per event to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

const (
	auditEventLoginSuccess   = "login_success"
	auditEventLoginFailure   = "login_failure"
	auditEventLogout         = "logout"
	auditEventForcedLogout   = "forced_logout"
	auditEventRefreshSuccess = "refresh_success"
	auditEventRefreshFailure = "refresh_failure"
	auditEventRestored       = "session_restored"
)

// AuditErrorCode is the stable error classification written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrUnauthorized    AuditErrorCode = "unauthorized"
	auditErrNoRefreshToken  AuditErrorCode = "no_refresh_token"
	auditErrRefreshFailed   AuditErrorCode = "refresh_failed"
	auditErrTransport       AuditErrorCode = "transport"
	auditErrHTTPStatus      AuditErrorCode = "http_status"
	auditErrInvalidResponse AuditErrorCode = "invalid_response"
	auditErrInternal        AuditErrorCode = "internal"
)

func auditErrorCode(err error) AuditErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRefreshUnavailable):
		return auditErrNoRefreshToken
	case errors.Is(err, ErrRefreshFailed):
		return auditErrRefreshFailed
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrTransport):
		return auditErrTransport
	case errors.Is(err, ErrInvalidResponse):
		return auditErrInvalidResponse
	case StatusCode(err) != 0:
		return auditErrHTTPStatus
	default:
		return auditErrInternal
	}
}

func (c *Client) emitAudit(ctx context.Context, eventType string, success bool, err error, profile *Profile, metadata map[string]string) {
	if c.audit == nil {
		return
	}

	event := AuditEvent{
		EventType: eventType,
		RequestID: RequestIDFromContext(ctx),
		Success:   success,
		Error:     string(auditErrorCode(err)),
		Metadata:  metadata,
	}
	if profile != nil {
		if profile.ID != 0 {
			event.UserID = strconv.FormatInt(profile.ID, 10)
		}
		event.Username = profile.Username
	}
	if code := StatusCode(err); code != 0 {
		if event.Metadata == nil {
			event.Metadata = make(map[string]string, 1)
		}
		event.Metadata["status"] = strconv.Itoa(code)
	}

	c.audit.Emit(ctx, event)
}
