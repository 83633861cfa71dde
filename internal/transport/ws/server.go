// Package ws carries the session protocol over websockets: JSON text
// frames, one message per frame.
package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"railverse.dev/internal/command"
	"railverse.dev/internal/netsync"
	"railverse.dev/internal/protocol"
)

type Server struct {
	sess *netsync.Session
	log  *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(sess *netsync.Session, logger *log.Logger) *Server {
	return &Server{
		sess: sess,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		id, out := s.handshake(conn)
		if id == 0 {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			s.route(id, msg)
		}

		// Cleanup.
		s.sess.Leave() <- id
	}
}

// route translates one client frame into a session request.
func (s *Server) route(id command.ParticipantID, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeCmd:
		var m protocol.CmdMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return
		}
		if m.ProtocolVersion != protocol.Version {
			return
		}
		raw, err := base64.StdEncoding.DecodeString(m.Envelope)
		if err != nil {
			return
		}
		var env command.Envelope
		if err := env.UnmarshalBinary(raw); err != nil {
			s.log.Printf("participant %d: bad envelope: %v", id, err)
			return
		}
		s.sess.Inbox() <- netsync.Submission{Origin: id, Env: &env}
	case protocol.TypeDesync:
		var m protocol.DesyncMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return
		}
		s.sess.DesyncInbox() <- netsync.DesyncNotice{
			Origin: id,
			Tick:   m.Tick,
			Reason: m.Reason,
		}
	case protocol.TypeQuit:
		s.sess.Leave() <- id
	}
}

func (s *Server) handshake(conn *websocket.Conn) (command.ParticipantID, chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return 0, nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return 0, nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return 0, nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, protocol.ErrProtoVersion), time.Now().Add(time.Second))
		return 0, nil
	}
	if hello.Name == "" {
		hello.Name = "player"
	}

	// The outbound queue must absorb a full scheduling window; a
	// client that falls further behind than this is cut by the
	// session.
	out := make(chan []byte, 512)

	respCh := make(chan netsync.JoinResponse, 1)
	s.sess.Join() <- netsync.JoinRequest{
		Name:      hello.Name,
		Company:   command.CompanyID(hello.Company),
		Spectator: hello.Spectator,
		Out:       out,
		Resp:      respCh,
	}
	resp := <-respCh

	if err := writeJSON(conn, resp.Welcome); err != nil {
		return 0, nil
	}
	if resp.Welcome.Error != "" {
		return 0, nil
	}
	return command.ParticipantID(resp.Welcome.Participant), out
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
