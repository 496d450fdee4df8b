package session

import "sync"

// Locker serializes turns per session id. Different ids never block each
// other, and an id's mutex is dropped once nobody holds or waits for it.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*refLock)}
}

// Lock blocks until id is free and returns the matching unlock func.
func (l *Locker) Lock(id string) (unlock func()) {
	l.mu.Lock()
	rl, ok := l.locks[id]
	if !ok {
		rl = &refLock{}
		l.locks[id] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			rl.mu.Unlock()
			l.mu.Lock()
			rl.refs--
			if rl.refs == 0 {
				delete(l.locks, id)
			}
			l.mu.Unlock()
		})
	}
}

func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
