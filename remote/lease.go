package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/zeu5/ur-rl-env/types"
)

var (
	ErrLeaseHeld = errors.New("robot is leased by another owner")
	ErrLeaseLost = errors.New("robot lease expired or was taken over")
)

// only the owner may extend or drop the lease
var (
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

type LeaseConfig struct {
	RedisAddr string
	// Identifies the robot, usually its session address
	Robot string
	TTL   time.Duration
}

// Lease is an exclusive claim on a robot stored in Redis
type Lease struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

func leaseKey(robot string) string {
	return "ur-rl-env:lease:" + robot
}

// AcquireLease claims the robot or fails with ErrLeaseHeld
func AcquireLease(ctx context.Context, client *redis.Client, robot string, ttl time.Duration) (*Lease, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	l := &Lease{
		client: client,
		key:    leaseKey(robot),
		token:  uuid.NewString(),
		ttl:    ttl,
	}
	ok, err := client.SetNX(ctx, l.key, l.token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring lease on %s: %w", robot, err)
	}
	if !ok {
		holder, err := client.Get(ctx, l.key).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrLeaseHeld, robot)
		}
		return nil, fmt.Errorf("%w: %s held by %s", ErrLeaseHeld, robot, holder)
	}
	return l, nil
}

func (l *Lease) Token() string {
	return l.token
}

// Refresh extends the lease by its TTL
func (l *Lease) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("refreshing lease: %w", err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Release drops the lease if still owned
func (l *Lease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("releasing lease: %w", err)
	}
	return nil
}

// LeasedSession holds a lease for as long as the wrapped session is open.
// The lease is refreshed on every reset and step, so no background work is
// needed while the robot is driven.
type LeasedSession struct {
	types.Session
	lease  *Lease
	client *redis.Client
}

var _ types.Session = &LeasedSession{}

func NewLeasedSession(ctx context.Context, session types.Session, config LeaseConfig) (*LeasedSession, error) {
	client := redis.NewClient(&redis.Options{
		Addr: config.RedisAddr,
	})
	lease, err := AcquireLease(ctx, client, config.Robot, config.TTL)
	if err != nil {
		client.Close()
		return nil, err
	}
	return &LeasedSession{Session: session, lease: lease, client: client}, nil
}

func (l *LeasedSession) Lease() *Lease {
	return l.lease
}

func (l *LeasedSession) Reset(ctx context.Context) (types.TimeStep, error) {
	if err := l.lease.Refresh(ctx); err != nil {
		return types.TimeStep{}, err
	}
	return l.Session.Reset(ctx)
}

func (l *LeasedSession) Step(ctx context.Context, action []float32) (types.TimeStep, error) {
	if err := l.lease.Refresh(ctx); err != nil {
		return types.TimeStep{}, err
	}
	return l.Session.Step(ctx, action)
}

// Close closes the session, then releases the lease
func (l *LeasedSession) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := l.Session.Close()
	if rerr := l.lease.Release(ctx); rerr != nil && err == nil {
		err = rerr
	}
	l.client.Close()
	return err
}
