package session

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// transport is one websocket connection. Sends are queued without blocking and written
// in order by a dedicated writer goroutine.
type transport struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	queue  [][]byte
	signal chan struct{}

	once   sync.Once
	closed chan struct{}
}

func newTransport(id string, conn *websocket.Conn) *transport {
	return &transport{
		id:     id,
		conn:   conn,
		signal: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (t *transport) enqueue(b []byte) {
	t.mu.Lock()
	t.queue = append(t.queue, b)
	t.mu.Unlock()
	select {
	case t.signal <- struct{}{}:
	default:
	}
}

func (t *transport) take() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	q := t.queue
	t.queue = nil
	return q
}

func (t *transport) writeLoop(onErr func(error)) {
	for {
		select {
		case <-t.closed:
			return
		case <-t.signal:
		}
		for _, b := range t.take() {
			_ = t.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := t.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				onErr(err)
				return
			}
		}
	}
}

func (t *transport) close() {
	t.once.Do(func() {
		close(t.closed)
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = t.conn.Close()
	})
}
