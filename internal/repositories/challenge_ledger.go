package repositories

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChallengeLedger запоминает использованные ссылки проверки (jti) до истечения их срока.
type ChallengeLedger interface {
	// Consume marks id as used. It returns false if id was already consumed.
	Consume(ctx context.Context, id string, ttl time.Duration) (bool, error)
	IsConsumed(ctx context.Context, id string) (bool, error)
}

const challengeKeyPrefix = "rolegate:challenge:"

type redisChallengeLedger struct{ rdb *redis.Client }

func NewRedisChallengeLedger(rdb *redis.Client) ChallengeLedger {
	return &redisChallengeLedger{rdb: rdb}
}

func (l *redisChallengeLedger) Consume(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	ok, err := l.rdb.SetNX(ctx, challengeKeyPrefix+id, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("challenge consume: %w", err)
	}
	return ok, nil
}

func (l *redisChallengeLedger) IsConsumed(ctx context.Context, id string) (bool, error) {
	n, err := l.rdb.Exists(ctx, challengeKeyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("challenge lookup: %w", err)
	}
	return n > 0, nil
}

type MemoryChallengeLedger struct {
	mu       sync.Mutex
	consumed map[string]time.Time
	now      func() time.Time
}

func NewMemoryChallengeLedger() *MemoryChallengeLedger {
	return &MemoryChallengeLedger{consumed: make(map[string]time.Time), now: time.Now}
}

func (l *MemoryChallengeLedger) Consume(_ context.Context, id string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.sweep(now)
	if _, ok := l.consumed[id]; ok {
		return false, nil
	}
	l.consumed[id] = now.Add(ttl)
	return true, nil
}

func (l *MemoryChallengeLedger) IsConsumed(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.consumed[id]
	return ok && l.now().Before(exp), nil
}

func (l *MemoryChallengeLedger) sweep(now time.Time) {
	for id, exp := range l.consumed {
		if !now.Before(exp) {
			delete(l.consumed, id)
		}
	}
}

// NewRedisClient подключается к Redis и проверяет соединение ping-ом.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// OpenChallengeLedger выбирает redis, если адрес задан и сервер отвечает, иначе память процесса.
// closeFn закрывает соединение с redis; для памяти ничего не делает.
func OpenChallengeLedger(ctx context.Context, addr, password string, db int) (ledger ChallengeLedger, closeFn func() error) {
	if addr == "" {
		log.Printf("[ledger] redis not configured, using in-memory ledger")
		return NewMemoryChallengeLedger(), func() error { return nil }
	}
	rdb, err := NewRedisClient(ctx, addr, password, db)
	if err != nil {
		log.Printf("[ledger][warn] %v, using in-memory ledger", err)
		return NewMemoryChallengeLedger(), func() error { return nil }
	}
	return NewRedisChallengeLedger(rdb), rdb.Close
}
