package services

import (
	"context"
	"errors"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"rolegate/internal/models"
)

var ErrSessionClosed = errors.New("session closed")

// VerifyFunc: шаг, который выполняется в контексте бот-сессии.
type VerifyFunc func(ctx context.Context, req models.VerificationRequest) models.VerificationResult

type queueTask struct {
	req    models.VerificationRequest
	result chan models.VerificationResult
}

// SessionQueue принадлежит контексту бот-сессии. Заявки раскладываются по шардам
// по хэшу user_id: заявки одного пользователя выполняются строго по очереди,
// разные пользователи обрабатываются параллельно.
type SessionQueue struct {
	shards []chan queueTask
	verify VerifyFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu: Submit держит RLock на время отправки, Close ставит closed под Lock
	mu     sync.RWMutex
	closed bool
}

func NewSessionQueue(parent context.Context, shards, depth int, verify VerifyFunc) *SessionQueue {
	if shards <= 0 {
		shards = 1
	}
	if depth <= 0 {
		depth = 64
	}
	ctx, cancel := context.WithCancel(parent)
	q := &SessionQueue{
		shards: make([]chan queueTask, shards),
		verify: verify,
		ctx:    ctx,
		cancel: cancel,
	}
	for i := range q.shards {
		q.shards[i] = make(chan queueTask, depth)
		q.wg.Add(1)
		go q.worker(q.shards[i])
	}
	return q
}

func (q *SessionQueue) shardFor(userID string) chan queueTask {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return q.shards[h.Sum32()%uint32(len(q.shards))]
}

// Submit передаёт заявку в контекст сессии и сразу возвращает канал с результатом.
func (q *SessionQueue) Submit(ctx context.Context, req models.VerificationRequest) (<-chan models.VerificationResult, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed || q.ctx.Err() != nil {
		return nil, ErrSessionClosed
	}
	t := queueTask{req: req, result: make(chan models.VerificationResult, 1)}
	select {
	case q.shardFor(req.UserID) <- t:
		return t.result, nil
	case <-q.ctx.Done():
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *SessionQueue) worker(tasks chan queueTask) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			q.drain(tasks)
			return
		case t := <-tasks:
			t.result <- q.verify(q.ctx, t.req)
		}
	}
}

// drain отвечает оставшимся заявкам без выполнения: роль не выдавалась, запись не делалась.
func (q *SessionQueue) drain(tasks chan queueTask) {
	for {
		select {
		case t := <-tasks:
			log.Printf("[queue][drain] abandoned user_id=%s", t.req.UserID)
			t.result <- models.VerificationResult{
				State:      models.StateGrantError,
				GrantError: models.GrantFailed,
				Err:        ErrSessionClosed,
			}
		default:
			return
		}
	}
}

// Close отменяет контекст сессии и ждёт завершения воркеров.
func (q *SessionQueue) Close() {
	q.cancel()
	// после Lock ни одна отправка уже не в полёте и новых не будет
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
	for _, tasks := range q.shards {
		q.drain(tasks)
	}
}

// Await ждёт результат не дольше wait. ok=false: обработка ещё идёт.
func Await(ctx context.Context, ch <-chan models.VerificationResult, wait time.Duration) (models.VerificationResult, bool) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case res := <-ch:
		return res, true
	case <-timer.C:
		return models.VerificationResult{}, false
	case <-ctx.Done():
		return models.VerificationResult{}, false
	}
}
