package auth_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	auth "github.com/goliatone/go-tenant-auth"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendActionTokenEmail(ctx context.Context, token *auth.ActionToken, link string) error {
	args := m.Called(ctx, token, link)
	return args.Error(0)
}

type sentLink struct {
	Token *auth.ActionToken
	Link  string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentLink
}

func (n *recordingNotifier) SendActionTokenEmail(_ context.Context, token *auth.ActionToken, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentLink{Token: token, Link: link})
	return nil
}

func (n *recordingNotifier) Sent() []sentLink {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentLink{}, n.sent...)
}

type captureSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *captureSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) Types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

func (s *captureSink) Last(eventType auth.ActivityEventType) (auth.ActivityEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].EventType == eventType {
			return s.events[i], true
		}
	}
	return auth.ActivityEvent{}, false
}
