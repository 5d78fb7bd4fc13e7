package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/redis/go-redis/v9"
)

const (
	tokenKeySuffix = ":access_token"
	userKeySuffix  = ":user"
	eventsSuffix   = ":credential_events"
)

// Redis is a credential store over a shared redis instance. It exists for
// deployments where several console instances must observe one session
// medium; mutation events travel over a pub/sub channel and stand in for
// the browser's storage notification.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis returns a redis-backed credential store. All keys and the event
// channel are namespaced under prefix.
func NewRedis(rdb *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "robin"
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) tokenKey() string { return r.prefix + tokenKeySuffix }
func (r *Redis) userKey() string  { return r.prefix + userKeySuffix }
func (r *Redis) channel() string  { return r.prefix + eventsSuffix }

// SetToken stores the access token.
func (r *Redis) SetToken(ctx context.Context, token string) error {
	if err := r.rdb.Set(ctx, r.tokenKey(), token, 0).Err(); err != nil {
		return err
	}
	r.publish(ctx, Event{Op: OpSet, Origin: originFromContext(ctx)})
	return nil
}

// Token returns the stored access token, or ErrNotFound when absent.
func (r *Redis) Token(ctx context.Context) (string, error) {
	token, err := r.rdb.Get(ctx, r.tokenKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// SetUser stores the serialized operator profile.
func (r *Redis) SetUser(ctx context.Context, user *User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.userKey(), data, 0).Err(); err != nil {
		return err
	}
	r.publish(ctx, Event{Op: OpSet, Origin: originFromContext(ctx)})
	return nil
}

// User returns the stored profile after validating it. Corruption purges
// both entries and reports ErrCorruptRecord.
func (r *Redis) User(ctx context.Context) (*User, error) {
	data, err := r.rdb.Get(ctx, r.userKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, r.purgeCorrupt(ctx)
	}
	u.Normalize()
	if err := u.Validate(); err != nil {
		return nil, r.purgeCorrupt(ctx)
	}
	return &u, nil
}

func (r *Redis) purgeCorrupt(ctx context.Context) error {
	log.Print("consoleauth: corrupt profile in credential store, purging session")
	if err := r.rdb.Del(ctx, r.tokenKey(), r.userKey()).Err(); err != nil {
		log.Print("consoleauth: purging corrupt credential record failed")
	}
	r.publish(ctx, Event{Op: OpClear, Origin: originFromContext(ctx)})
	return ErrCorruptRecord
}

// Clear removes both entries.
func (r *Redis) Clear(ctx context.Context) error {
	if err := r.rdb.Del(ctx, r.tokenKey(), r.userKey()).Err(); err != nil {
		return err
	}
	r.publish(ctx, Event{Op: OpClear, Origin: originFromContext(ctx)})
	return nil
}

// Watch implements Watcher over the store's pub/sub channel.
func (r *Redis) Watch(ctx context.Context) (<-chan Event, error) {
	sub := r.rdb.Subscribe(ctx, r.channel())
	// force the subscription before callers depend on it
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan Event, 8)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *Redis) publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := r.rdb.Publish(ctx, r.channel(), payload).Err(); err != nil {
		log.Print("consoleauth: publishing credential store event failed")
	}
}
