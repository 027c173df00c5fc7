package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrClosed is returned by commands sent after the connection closed.
var ErrClosed = errors.New("bridge: connection closed")

// ErrNoHistory is returned by PushState and ReplaceState when the browser
// announced no history API.
var ErrNoHistory = errors.New("bridge: browser has no history API")

// Remote is one connected browser. It keeps a mirror of the browser's
// location and state so reads never block on the network; commands are
// written through and browser events update the mirror before listeners
// run. Remote implements history.Platform.
type Remote struct {
	// ID identifies the connection in logs.
	ID string

	conn         *websocket.Conn
	writeTimeout time.Duration
	logger       *slog.Logger
	writeMu      sync.Mutex

	mu       sync.Mutex
	url      string
	state    map[string]any
	native   bool
	popSubs  map[int]func(map[string]any)
	hashSubs map[int]func()
	navSubs  map[int]func(url string, replace bool)
	nextSub  int

	closeOnce sync.Once
	done      chan struct{}
}

func newRemote(conn *websocket.Conn, hello Message, writeTimeout time.Duration, logger *slog.Logger) *Remote {
	id := uuid.NewString()
	url := hello.URL
	if url == "" {
		url = "/"
	}
	return &Remote{
		ID:           id,
		conn:         conn,
		writeTimeout: writeTimeout,
		logger:       logger.With("conn", id),
		url:          url,
		state:        hello.State,
		native:       hello.Native,
		popSubs:      make(map[int]func(map[string]any)),
		hashSubs:     make(map[int]func()),
		navSubs:      make(map[int]func(string, bool)),
		done:         make(chan struct{}),
	}
}

func (r *Remote) URL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.url
}

func (r *Remote) HistoryState() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Remote) SupportsHistory() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.native
}

func (r *Remote) PushState(state map[string]any, url string) error {
	return r.change(OpPush, state, url)
}

func (r *Remote) ReplaceState(state map[string]any, url string) error {
	return r.change(OpReplace, state, url)
}

func (r *Remote) change(op Op, state map[string]any, url string) error {
	r.mu.Lock()
	if !r.native {
		r.mu.Unlock()
		return ErrNoHistory
	}
	r.url = url
	r.state = state
	r.mu.Unlock()
	return r.send(Message{Op: op, URL: url, State: state})
}

// Go asks the browser to traverse. The mirror moves when the browser
// reports the resulting popstate.
func (r *Remote) Go(delta int) {
	if err := r.send(Message{Op: OpGo, Delta: delta}); err != nil {
		r.logger.Debug("go not sent", "delta", delta, "error", err)
	}
}

func (r *Remote) AssignHash(fragment string) {
	fragment = strings.TrimPrefix(fragment, "#")
	r.mu.Lock()
	base, _, _ := strings.Cut(r.url, "#")
	r.url = base + "#" + fragment
	r.state = nil
	r.mu.Unlock()
	if err := r.send(Message{Op: OpHash, Fragment: fragment}); err != nil {
		r.logger.Debug("hash not sent", "fragment", fragment, "error", err)
	}
}

func (r *Remote) OnPopState(fn func(state map[string]any)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSub++
	id := r.nextSub
	r.popSubs[id] = fn
	return func() {
		r.mu.Lock()
		delete(r.popSubs, id)
		r.mu.Unlock()
	}
}

func (r *Remote) OnHashChange(fn func()) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSub++
	id := r.nextSub
	r.hashSubs[id] = fn
	return func() {
		r.mu.Lock()
		delete(r.hashSubs, id)
		r.mu.Unlock()
	}
}

// OnNavigate registers fn for navigation requests from the browser. The
// browser location does not change until the server pushes.
func (r *Remote) OnNavigate(fn func(url string, replace bool)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSub++
	id := r.nextSub
	r.navSubs[id] = fn
	return func() {
		r.mu.Lock()
		delete(r.navSubs, id)
		r.mu.Unlock()
	}
}

// Done is closed when the connection ends.
func (r *Remote) Done() <-chan struct{} {
	return r.done
}

// Close ends the connection.
func (r *Remote) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		r.writeMu.Lock()
		r.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(r.writeTimeout))
		r.writeMu.Unlock()
		err = r.conn.Close()
	})
	return err
}

func (r *Remote) closed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (r *Remote) send(msg Message) error {
	if r.closed() {
		return ErrClosed
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Op, err)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.conn.SetWriteDeadline(time.Now().Add(r.writeTimeout))
	if err := r.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", msg.Op, err)
	}
	return nil
}

// readLoop applies browser events until the connection fails or closes.
func (r *Remote) readLoop(readTimeout time.Duration) {
	defer r.Close()

	for {
		if readTimeout > 0 {
			r.conn.SetReadDeadline(time.Now().Add(readTimeout))
		}
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				r.logger.Error("read error", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			r.logger.Error("message decode error", "error", err)
			continue
		}
		r.handle(msg)
	}
}

func (r *Remote) handle(msg Message) {
	switch msg.Op {
	case OpPopState:
		r.mu.Lock()
		r.url = msg.URL
		r.state = msg.State
		subs := make([]func(map[string]any), 0, len(r.popSubs))
		for _, fn := range r.popSubs {
			subs = append(subs, fn)
		}
		r.mu.Unlock()
		for _, fn := range subs {
			fn(msg.State)
		}

	case OpHashChange:
		r.mu.Lock()
		r.url = msg.URL
		subs := make([]func(), 0, len(r.hashSubs))
		for _, fn := range r.hashSubs {
			subs = append(subs, fn)
		}
		r.mu.Unlock()
		for _, fn := range subs {
			fn()
		}

	case OpNavigate:
		r.mu.Lock()
		subs := make([]func(string, bool), 0, len(r.navSubs))
		for _, fn := range r.navSubs {
			subs = append(subs, fn)
		}
		r.mu.Unlock()
		for _, fn := range subs {
			fn(msg.URL, msg.Replace)
		}

	default:
		r.logger.Warn("unexpected message", "op", msg.Op)
	}
}
