package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

// ClientConn adapts a dialed websocket to the netsync.Conn interface.
type ClientConn struct {
	conn *websocket.Conn
}

// Dial connects to a session server, e.g. ws://host:8642/v1/ws.
func Dial(url string) (*ClientConn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return &ClientConn{conn: conn}, nil
}

func (c *ClientConn) ReadMessage() ([]byte, error) {
	_, msg, err := c.conn.ReadMessage()
	return msg, err
}

func (c *ClientConn) WriteMessage(b []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func (c *ClientConn) Close() error { return c.conn.Close() }
