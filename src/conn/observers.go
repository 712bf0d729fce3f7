package conn

// ObserverID identifies one lifecycle observer registration so it can be
// revoked independently of the consumer that created it.
type ObserverID uint64

type observerEntry[F any] struct {
	id ObserverID
	fn F
}

// OnConnect registers a callback invoked after every successful (re)connect.
// Callbacks run synchronously in registration order, so state
// resynchronization installed first runs before any consumer callback.
func (m *Manager) OnConnect(fn func()) ObserverID {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.nextObs++
	m.onConnect = append(m.onConnect, observerEntry[func()]{id: m.nextObs, fn: fn})
	return m.nextObs
}

// OnDisconnect registers a callback invoked when the connection drops,
// whether intentionally, unexpectedly, or terminally.
func (m *Manager) OnDisconnect(fn func(reason string)) ObserverID {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.nextObs++
	m.onDisconnect = append(m.onDisconnect, observerEntry[func(reason string)]{id: m.nextObs, fn: fn})
	return m.nextObs
}

// OnError registers a callback for transport failures and server-reported
// errors. Raw transport errors never cross this boundary any other way.
func (m *Manager) OnError(fn func(err error)) ObserverID {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.nextObs++
	m.onError = append(m.onError, observerEntry[func(err error)]{id: m.nextObs, fn: fn})
	return m.nextObs
}

// RemoveObserver revokes a registration. Unknown IDs are ignored.
func (m *Manager) RemoveObserver(id ObserverID) {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.onConnect = removeObserver(m.onConnect, id)
	m.onDisconnect = removeObserver(m.onDisconnect, id)
	m.onError = removeObserver(m.onError, id)
}

func removeObserver[F any](entries []observerEntry[F], id ObserverID) []observerEntry[F] {
	for i, e := range entries {
		if e.id == id {
			return append(entries[:i:i], entries[i+1:]...)
		}
	}
	return entries
}

// ForwardError surfaces a server-reported application error to the error
// observers. Used by the router for error-class frames.
func (m *Manager) ForwardError(err error) {
	m.notifyError(err)
}

func (m *Manager) notifyConnect() {
	for _, fn := range snapshotObservers(m, &m.onConnect) {
		fn()
	}
}

func (m *Manager) notifyDisconnect(reason string) {
	for _, fn := range snapshotObservers(m, &m.onDisconnect) {
		fn(reason)
	}
}

func (m *Manager) notifyError(err error) {
	for _, fn := range snapshotObservers(m, &m.onError) {
		fn(err)
	}
}

func snapshotObservers[F any](m *Manager, entries *[]observerEntry[F]) []F {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	fns := make([]F, 0, len(*entries))
	for _, e := range *entries {
		fns = append(fns, e.fn)
	}
	return fns
}
