package service

import (
	"context"
	"sync"
)

// AccountLocker grants exclusive write access to one account. Lock blocks
// until the lock is held or ctx is done; the returned func releases it.
type AccountLocker interface {
	Lock(ctx context.Context, accountID string) (func(), error)
}

// LocalLocker is an in-process keyed mutex. It only serializes writers
// inside a single replica.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	sem  chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, accountID string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[accountID]
	if !ok {
		lk = &localLock{sem: make(chan struct{}, 1)}
		l.locks[accountID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(accountID, lk)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.sem
			l.release(accountID, lk)
		})
	}, nil
}

func (l *LocalLocker) release(accountID string, lk *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, accountID)
	}
}
