package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease key only if this lease still owns it,
// so a lease that expired and was re-acquired by another replica cannot
// be released by the stale holder.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// RedisRegistry implements session exclusivity across replicas with a
// TTL lease per session. Leases are renewed in the background while held;
// if a worker dies without releasing, the lease expires after the TTL and
// the session becomes bindable again.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRegistry creates a registry backed by the given Redis client.
func NewRedisRegistry(client *redis.Client, ttl time.Duration) *RedisRegistry {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &RedisRegistry{client: client, ttl: ttl}
}

func leaseKey(sessionID string) string {
	return "lumina:session-lease:" + sessionID
}

// Bind acquires the exclusive lease for a session.
func (r *RedisRegistry) Bind(ctx context.Context, sessionID string) (Lease, error) {
	token := uuid.New().String()

	ok, err := r.client.SetNX(ctx, leaseKey(sessionID), token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire session lease: %w", err)
	}
	if !ok {
		return nil, ErrSessionBusy
	}

	renewCtx, cancel := context.WithCancel(context.Background())
	lease := &redisLease{
		registry:  r,
		sessionID: sessionID,
		token:     token,
		cancel:    cancel,
	}
	go lease.renewLoop(renewCtx)
	return lease, nil
}

// Shutdown stops nothing server-side: held leases are released by their
// workers or expire by TTL. The client connection is closed.
func (r *RedisRegistry) Shutdown(_ context.Context) error {
	return r.client.Close()
}

type redisLease struct {
	registry  *RedisRegistry
	sessionID string
	token     string
	cancel    context.CancelFunc
	once      sync.Once
}

func (l *redisLease) SessionID() string { return l.sessionID }

func (l *redisLease) Release() {
	l.once.Do(func() {
		l.cancel()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Best effort: on failure the lease expires by TTL.
		_ = l.registry.client.Eval(ctx, releaseScript,
			[]string{leaseKey(l.sessionID)}, l.token).Err()
	})
}

// renewLoop extends the lease TTL at half-TTL intervals until released.
func (l *redisLease) renewLoop(ctx context.Context) {
	ticker := time.NewTicker(l.registry.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			renewCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_ = l.registry.client.Expire(renewCtx, leaseKey(l.sessionID), l.registry.ttl).Err()
			cancel()
		}
	}
}
