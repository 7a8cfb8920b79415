package api

import (
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var (
	errConnClosed   = errors.New("connection closed")
	errSlowConsumer = errors.New("send buffer full, dropping subscriber")
)

// wsClient adapts one websocket connection to the hub's Conn interface.
// Send never blocks: a full buffer reports the client as slow and the hub
// drops it.
type wsClient struct {
	conn *websocket.Conn
	send chan events.Event

	closeOnce sync.Once
	done      chan struct{}
}

func (w *wsClient) Send(ev events.Event) error {
	select {
	case <-w.done:
		return errConnClosed
	case w.send <- ev:
		return nil
	default:
		return errSlowConsumer
	}
}

func (w *wsClient) close() {
	w.closeOnce.Do(func() {
		close(w.done)
		_ = w.conn.Close()
	})
}

// controlMessage is the client-to-server frame shape.
type controlMessage struct {
	Op      string `json:"op"` // "subscribe" | "unsubscribe"
	Channel string `json:"channel"`
}

func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan events.Event, 100),
		done: make(chan struct{}),
	}
	defer func() {
		s.Hub.UnsubscribeAll(client)
		client.close()
	}()

	go s.writePump(client)
	s.readPump(client)
}

func (s *Server) writePump(w *wsClient) {
	for {
		select {
		case <-w.done:
			return
		case ev := <-w.send:
			if err := w.conn.WriteJSON(ev); err != nil {
				log.Printf("ws write error: %v", err)
				s.Hub.UnsubscribeAll(w)
				w.close()
				return
			}
		}
	}
}

func (s *Server) readPump(w *wsClient) {
	for {
		var msg controlMessage
		if err := w.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("ws read error: %v", err)
			}
			return
		}

		// Writes go through writePump only; bad control frames are logged,
		// not answered, so the two pumps never race on the connection.
		channel := events.Channel(msg.Channel)
		switch msg.Op {
		case "subscribe":
			if err := s.Hub.Subscribe(w, channel); err != nil {
				log.Printf("ws subscribe %q: %v", msg.Channel, err)
			}
		case "unsubscribe":
			s.Hub.Unsubscribe(w, channel)
		default:
			log.Printf("ws unknown op %q", msg.Op)
		}
	}
}
