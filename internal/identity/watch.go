package identity

import "sync"

// SessionWatcher es la notificación continua de cambios de sesión del
// proveedor, scoped a una sesión de navegador. Las operaciones de sign-in
// publican acá en lugar de tocar el estado del orchestrator directamente;
// el listener canónico es el único que escribe authUser.
type SessionWatcher struct {
	mu      sync.Mutex
	current *Session
	started bool // true después del primer Set; Subscribe tardío recibe replay
	subs    map[int]func(*Session)
	next    int
}

// NewSessionWatcher crea un watcher vacío.
func NewSessionWatcher() *SessionWatcher {
	return &SessionWatcher{subs: make(map[int]func(*Session))}
}

// Subscribe registra un callback y retorna el handle para desuscribir.
// Si ya hubo al menos una notificación, el callback recibe el estado actual
// de inmediato (mismo contrato que onAuthStateChanged: el subscriber nunca
// se pierde el estado inicial).
func (w *SessionWatcher) Subscribe(cb func(*Session)) (unsubscribe func()) {
	w.mu.Lock()
	id := w.next
	w.next++
	w.subs[id] = cb
	replay := w.started
	cur := w.current
	w.mu.Unlock()

	if replay {
		cb(cur)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, id)
			w.mu.Unlock()
		})
	}
}

// Set publica una nueva sesión (nil = no hay sesión) a todos los subscribers.
func (w *SessionWatcher) Set(s *Session) {
	w.mu.Lock()
	w.current = s
	w.started = true
	cbs := make([]func(*Session), 0, len(w.subs))
	for _, cb := range w.subs {
		cbs = append(cbs, cb)
	}
	w.mu.Unlock()

	for _, cb := range cbs {
		cb(s)
	}
}

// Current retorna la última sesión publicada.
func (w *SessionWatcher) Current() *Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}
