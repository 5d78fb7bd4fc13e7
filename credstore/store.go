package credstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the requested credential entry is absent.
var ErrNotFound = errors.New("credential not found")

// ErrCorruptRecord is returned when a stored profile fails validation. The
// store has already purged both entries by the time this is returned.
var ErrCorruptRecord = errors.New("corrupt credential record")

// Op identifies the kind of mutation carried by an Event.
type Op string

const (
	// OpSet is emitted when the token or profile entry is written.
	OpSet Op = "set"
	// OpClear is emitted when both entries are removed.
	OpClear Op = "clear"
)

// Event describes a mutation of the credential medium. Origin carries the
// identifier attached via WithOrigin by the writer, so watchers can tell
// their own writes from another instance's.
type Event struct {
	Op     Op
	Origin string
}

// Store is the durable credential medium: exactly two entries, the opaque
// access token and the JSON-serialized operator profile.
//
// User applies read-time validation: a record that does not deserialize or
// does not pass structural validation causes both entries to be purged and
// ErrCorruptRecord to be returned (fail-closed).
type Store interface {
	SetToken(ctx context.Context, token string) error
	Token(ctx context.Context) (string, error)
	SetUser(ctx context.Context, user *User) error
	User(ctx context.Context) (*User, error)
	Clear(ctx context.Context) error
}

// Watcher is implemented by stores that can report external mutations, the
// analog of the browser's cross-tab storage event.
type Watcher interface {
	// Watch delivers mutation events until ctx is cancelled. Slow consumers
	// may miss events; the channel is best-effort by contract.
	Watch(ctx context.Context) (<-chan Event, error)
}

type originContextKey struct{}

// WithOrigin attaches a writer identity to ctx. Stores stamp it onto the
// events they emit so the writer can ignore its own notifications.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originContextKey{}, origin)
}

func originFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	origin, _ := ctx.Value(originContextKey{}).(string)
	return origin
}
