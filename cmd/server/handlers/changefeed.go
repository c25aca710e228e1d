package handlers

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vitaliisemenov/native-user-store/internal/userstore"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ChangeFeed registers itself as a userstore.Listener and fans out every
// changedUsers event to its connected websocket clients. It exists purely
// as an operator debug tool — losing a client drops that client's events,
// it never blocks the poller.
type ChangeFeed struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []string
	logger  *slog.Logger
}

// NewChangeFeed builds a feed and registers it with store.
func NewChangeFeed(store userstore.Store, logger *slog.Logger) *ChangeFeed {
	if logger == nil {
		logger = slog.Default()
	}
	f := &ChangeFeed{clients: make(map[*websocket.Conn]chan []string), logger: logger}
	store.RegisterListener(userstore.ListenerFunc(f.broadcast))
	return f
}

// broadcast implements userstore.Listener: a slow or dead client's
// send buffer filling up drops that update rather than blocking the
// poller's dispatch.
func (f *ChangeFeed) broadcast(changed []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for conn, ch := range f.clients {
		select {
		case ch <- changed:
		default:
			f.logger.Warn("dropping change event for slow websocket client", "remote", conn.RemoteAddr())
		}
	}
	return nil
}

// ServeHTTP upgrades the connection and streams changedUsers events as
// JSON arrays until the client disconnects.
func (f *ChangeFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := make(chan []string, 16)
	f.mu.Lock()
	f.clients[conn] = ch
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.clients, conn)
		f.mu.Unlock()
	}()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case changed := <-ch:
			if err := conn.WriteJSON(changed); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
