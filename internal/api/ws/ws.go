package ws

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/BAT6188/libcamera2/internal/api"
	"github.com/BAT6188/libcamera2/internal/app"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func Init() {
	var cfg struct {
		Mod struct {
			Origin string `yaml:"origin"`
		} `yaml:"api"`
	}

	app.LoadConfig(&cfg)

	log = app.GetLogger("api")

	initWS(cfg.Mod.Origin)

	api.HandleFunc("api/ws", apiWS)
}

var log = zerolog.Nop()

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendQueue  = 32
)

// Message is one frame of the websocket API: {"type": "...", "value": ...}
type Message struct {
	Type  string `json:"type"`
	Value any    `json:"value,omitempty"`
	Raw   []byte `json:"-"`
}

func (m *Message) String() (value string) {
	_ = json.Unmarshal(m.Raw, &value)
	return
}

func (m *Message) Unmarshal(v any) error {
	return json.Unmarshal(m.Raw, v)
}

type WSHandler func(tr *Transport, msg *Message) error

// HandleFunc registers a handler for a message type. Handlers run in their
// own goroutine and may keep writing to tr until it closes.
func HandleFunc(msgType string, handler WSHandler) {
	handlersMu.Lock()
	handlers[msgType] = handler
	handlersMu.Unlock()
}

func handler(msgType string) WSHandler {
	handlersMu.RLock()
	defer handlersMu.RUnlock()
	return handlers[msgType]
}

var handlers = map[string]WSHandler{}
var handlersMu sync.RWMutex

var wsUp = &websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
}

func initWS(origin string) {
	switch origin {
	case "":
		wsUp.CheckOrigin = sameHost
	case "*":
		wsUp.CheckOrigin = func(r *http.Request) bool { return true }
	default:
		wsUp.CheckOrigin = func(r *http.Request) bool {
			return r.Header.Get("Origin") == origin
		}
	}
}

// sameHost accepts a missing Origin and an Origin on the same host,
// ports are ignored.
func sameHost(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	host, _, err := net.SplitHostPort(r.Host)
	if err != nil {
		host = r.Host
	}
	log.Trace().Msgf("[api] ws origin=%s host=%s", u.Host, r.Host)
	return u.Hostname() == host
}

func apiWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUp.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msgf("[api] ws upgrade host=%s origin=%s", r.Host, r.Header.Get("Origin"))
		return
	}

	tr := newTransport(r)
	go tr.writer(conn)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var raw struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		}
		if err = conn.ReadJSON(&raw); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure) {
				log.Trace().Err(err).Msg("[api] ws read")
			}
			break
		}

		msg := &Message{Type: raw.Type, Raw: raw.Value}

		log.Trace().Str("type", msg.Type).Msg("[api] ws msg")

		h := handler(msg.Type)
		if h == nil {
			tr.Write(&Message{Type: "error", Value: "unknown message: " + msg.Type})
			continue
		}

		go func() {
			if err := h(tr, msg); err != nil {
				tr.Write(&Message{Type: "error", Value: msg.Type + ": " + err.Error()})
			}
		}()
	}

	tr.Close()
}

// Transport is one websocket client. Writes are queued to a single writer
// goroutine and dropped when the client does not keep up.
type Transport struct {
	Request *http.Request

	send chan any
	done chan struct{}

	mu      sync.Mutex
	closed  bool
	onClose []func()
}

func newTransport(r *http.Request) *Transport {
	return &Transport{
		Request: r,
		send:    make(chan any, sendQueue),
		done:    make(chan struct{}),
	}
}

func (t *Transport) Write(msg any) {
	select {
	case t.send <- msg:
	case <-t.done:
	default:
		log.Debug().Msg("[api] ws queue full, drop message")
	}
}

func (t *Transport) writer(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		var err error

		select {
		case msg := <-t.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if data, ok := msg.([]byte); ok {
				err = conn.WriteMessage(websocket.BinaryMessage, data)
			} else {
				err = conn.WriteJSON(msg)
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = conn.WriteMessage(websocket.PingMessage, nil)
		case <-t.done:
			return
		}

		if err != nil {
			log.Trace().Err(err).Msg("[api] ws write")
			return
		}
	}
}

// Close runs the close hooks once.
func (t *Transport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	if t.done != nil {
		close(t.done)
	}
	hooks := t.onClose
	t.onClose = nil
	t.mu.Unlock()

	for _, f := range hooks {
		f()
	}
}

// OnClose runs f on close, or right away when already closed.
func (t *Transport) OnClose(f func()) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		f()
		return
	}
	t.onClose = append(t.onClose, f)
	t.mu.Unlock()
}
