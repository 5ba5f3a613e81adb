package settlement

import "sync"

type refMutex struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex serialises work per booking inside one process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

func newKeyedMutex() *keyedMutex {
	//nolint:exhaustruct
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()

	m, ok := k.locks[key]
	if !ok {
		//nolint:exhaustruct
		m = &refMutex{}
		k.locks[key] = m
	}

	m.refs++
	k.mu.Unlock()

	m.mu.Lock()

	return func() {
		m.mu.Unlock()

		k.mu.Lock()
		defer k.mu.Unlock()

		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
	}
}
