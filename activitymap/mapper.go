// Package activitymap flattens auth activity events into feed entries
// keyed by the tenant account they concern.
package activitymap

import (
	"context"
	"strings"
	"time"

	auth "github.com/goliatone/go-tenant-auth"
)

// Attribute keys added to Entry.Attributes
const (
	AttrActorType = "actor_type"
	AttrUserID    = "user_id"
)

// Object types reported by the default resolver
const (
	ObjectAccount = "account"
	ObjectUser    = "user"
)

const verbNamespace = "auth."

// ObjectRef names the record an entry is about
type ObjectRef struct {
	Type string `json:"type,omitempty"`
	ID   string `json:"id,omitempty"`
}

// Entry is one line of an activity feed
type Entry struct {
	Actor      string         `json:"actor"`
	Verb       string         `json:"verb"`
	Object     ObjectRef      `json:"object"`
	Channel    string         `json:"channel,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	At         time.Time      `json:"at"`
}

// Mapper turns events into entries. The zero value is ready to use.
type Mapper struct {
	// Channel tags every entry, "auth" when empty
	Channel string
	// FallbackActor is used when the event names neither actor nor user,
	// "system" when empty
	FallbackActor string
	// Resolve picks the entry object. By default the account wins over
	// the user.
	Resolve func(auth.ActivityEvent) ObjectRef
	// Now stamps events that carry no time
	Now func() time.Time
}

// Map converts event with the default mapper
func Map(event auth.ActivityEvent) Entry {
	return Mapper{}.Map(event)
}

// Map converts event into an entry. Event metadata is copied, never mutated.
func (m Mapper) Map(event auth.ActivityEvent) Entry {
	resolve := m.Resolve
	if resolve == nil {
		resolve = AccountObject
	}
	object := resolve(event)

	entry := Entry{
		Actor:   m.actor(event),
		Verb:    strings.TrimPrefix(string(event.EventType), verbNamespace),
		Object:  ObjectRef{Type: strings.TrimSpace(object.Type), ID: strings.TrimSpace(object.ID)},
		Channel: orDefault(strings.TrimSpace(m.Channel), "auth"),
		At:      event.OccurredAt,
	}

	if entry.At.IsZero() {
		entry.At = m.now()
	}

	attrs := make(map[string]any, len(event.Metadata)+2)
	for k, v := range event.Metadata {
		attrs[k] = v
	}
	if t := strings.TrimSpace(event.Actor.Type); t != "" {
		putMissing(attrs, AttrActorType, t)
	}
	if entry.Object.Type != ObjectUser && event.UserID != "" {
		putMissing(attrs, AttrUserID, event.UserID)
	}
	if len(attrs) > 0 {
		entry.Attributes = attrs
	}

	return entry
}

// Sink returns an auth.ActivitySink handing every mapped entry to fn
func (m Mapper) Sink(fn func(ctx context.Context, entry Entry) error) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		if fn == nil {
			return nil
		}
		return fn(ctx, m.Map(event))
	})
}

// AccountObject reports the account an event happened under, falling
// back to the user for events outside any tenant
func AccountObject(event auth.ActivityEvent) ObjectRef {
	if id := strings.TrimSpace(event.AccountID); id != "" {
		return ObjectRef{Type: ObjectAccount, ID: id}
	}
	if id := strings.TrimSpace(event.UserID); id != "" {
		return ObjectRef{Type: ObjectUser, ID: id}
	}
	return ObjectRef{}
}

func (m Mapper) actor(event auth.ActivityEvent) string {
	if id := strings.TrimSpace(event.Actor.ID); id != "" {
		return id
	}
	if id := strings.TrimSpace(event.UserID); id != "" {
		return id
	}
	return orDefault(strings.TrimSpace(m.FallbackActor), "system")
}

func (m Mapper) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

func putMissing(attrs map[string]any, key, value string) {
	if _, ok := attrs[key]; !ok {
		attrs[key] = value
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
