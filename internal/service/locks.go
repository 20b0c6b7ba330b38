package service

import "sync"

// roomLocks hands out one mutex per room code, so slow storage or broker
// calls for one room never hold up another.
type roomLocks struct {
	mu    sync.Mutex
	locks map[string]*roomLock
}

type roomLock struct {
	sync.Mutex
	refs int
}

// lock acquires the mutex of code and returns its release func.
func (l *roomLocks) lock(code string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*roomLock)
	}
	rl, ok := l.locks[code]
	if !ok {
		rl = &roomLock{}
		l.locks[code] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			rl.Unlock()

			l.mu.Lock()
			rl.refs--
			if rl.refs == 0 {
				delete(l.locks, code)
			}
			l.mu.Unlock()
		})
	}
}

func (l *roomLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
