package auth

import (
	"context"
	"time"
)

// ActivityEventType names an audited operation
type ActivityEventType string

const (
	ActivityEventLoginSuccess          ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure          ActivityEventType = "auth.login.failure"
	ActivityEventLogout                ActivityEventType = "auth.logout"
	ActivityEventSignUp                ActivityEventType = "auth.signup"
	ActivityEventActionTokenCreated    ActivityEventType = "auth.action_token.created"
	ActivityEventActionTokenConsumed   ActivityEventType = "auth.action_token.consumed"
	ActivityEventInvitationSent        ActivityEventType = "auth.invitation.sent"
	ActivityEventInvitationAccepted    ActivityEventType = "auth.invitation.accepted"
	ActivityEventEmailValidated        ActivityEventType = "auth.email.validated"
	ActivityEventTermsAccepted         ActivityEventType = "auth.terms.accepted"
	ActivityEventPrivacyPolicyAccepted ActivityEventType = "auth.privacy_policy.accepted"
	ActivityEventPasswordChanged       ActivityEventType = "auth.password.changed"
	ActivityEventPasswordResetSuccess  ActivityEventType = "auth.password.reset"
)

// ActorRef identifies what triggered an event
type ActorRef struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type,omitempty"`
}

// ActivityEvent describes one audited operation. AccountID is set when
// the operation ran under a tenant account.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	AccountID  string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink receives audit events. Services never fail an operation
// because a sink did, the error is only logged.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to ActivitySink
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiActivitySink fans an event out to every sink. All sinks are called,
// the first error is returned.
type MultiActivitySink []ActivitySink

// Record implements ActivitySink
func (m MultiActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// activityEmitter stamps and forwards events to an optional sink
type activityEmitter struct {
	sink   ActivitySink
	clock  Clock
	logger Logger
}

func (e activityEmitter) emit(ctx context.Context, event ActivityEvent) {
	if e.sink == nil {
		return
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.clock.now()
	}
	if event.Actor.Type == "" {
		event.Actor = ActorRef{Type: "unknown"}
		if event.UserID != "" {
			event.Actor = ActorRef{ID: event.UserID, Type: "user"}
		}
	}

	if err := e.sink.Record(ctx, event); err != nil && e.logger != nil {
		e.logger.Warn("activity sink dropped %s: %v", event.EventType, err)
	}
}
