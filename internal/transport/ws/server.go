// Package ws serves game connections over websocket.
package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"roguecloud.io/internal/auth"
	"roguecloud.io/internal/logging"
	"roguecloud.io/internal/protocol"
	"roguecloud.io/internal/round"
)

// Engine is the part of the round engine a transport talks to.
type Engine interface {
	Attach(ctx context.Context, req round.AttachRequest) (round.AttachResponse, error)
	Detach(token, transportID string)
	HealthAck(token, transportID string, id int64)
}

type Authenticator interface {
	Authenticate(username, password string) (int64, error)
}

type Server struct {
	engine Engine
	auth   Authenticator
	log    *zap.Logger

	outboundLen int
	upgrader    websocket.Upgrader
}

func NewServer(engine Engine, authn Authenticator, outboundLen int, logger *zap.Logger) *Server {
	logger = logging.OrNop(logger)
	if outboundLen <= 0 {
		outboundLen = 256
	}
	return &Server{
		engine:      engine,
		auth:        authn,
		log:         logger,
		outboundLen: outboundLen,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
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

		hs, userID, ok := s.handshake(conn)
		if !ok {
			return
		}

		t := &transport{conn: conn, out: make(chan round.Outbound, s.outboundLen), closeReq: make(chan closeRequest, 1)}
		attachCtx, attachCancel := context.WithTimeout(r.Context(), 5*time.Second)
		resp, err := s.engine.Attach(attachCtx, round.AttachRequest{
			Handshake: hs,
			UserID:    userID,
			Username:  hs.Username,
			Out:       t.out,
			Close:     t.close,
		})
		attachCancel()
		if err != nil {
			s.log.Info("attach failed", zap.String("conn", hs.ClientToken), zap.Error(err))
			closeWith(conn, websocket.CloseTryAgainLater, "server busy")
			return
		}
		if resp.Result != protocol.ResultSuccess {
			s.reject(conn, resp.Result, resp.RoundID, resp.Message)
			return
		}
		handle := resp.Conn
		log := s.log.With(zap.String("conn", handle.Token), zap.String("transport", handle.TransportID))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			t.writeLoop(ctx, cancel, log)
		}()

		s.readLoop(ctx, conn, handle, log)
		cancel()
		s.engine.Detach(handle.Token, handle.TransportID)
		<-writerDone
	}
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, h *round.Handle, log *zap.Logger) {
	for ctx.Err() == nil {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			log.Debug("read ended", zap.Error(err))
			return
		}
		payload, err := protocol.Payload(msg, mt == websocket.BinaryMessage)
		if err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, "bad frame")
			return
		}
		base, err := protocol.DecodeBase(payload)
		if err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, "bad json")
			return
		}
		switch base.Type {
		case protocol.TypeAction:
			var act protocol.ActionMsg
			if err := protocol.Unmarshal(payload, false, &act); err != nil {
				closeWith(conn, websocket.ClosePolicyViolation, "bad action")
				return
			}
			if !h.Offer(act.MessageID, protocol.ToAction(act.Action)) {
				log.Debug("action queue overflow", zap.Int64("message", act.MessageID))
			}
		case protocol.TypeHealthProbeAck:
			var ack protocol.HealthProbeAckMsg
			if err := protocol.Unmarshal(payload, false, &ack); err != nil {
				closeWith(conn, websocket.ClosePolicyViolation, "bad health probe ack")
				return
			}
			s.engine.HealthAck(h.Token, h.TransportID, ack.ID)
		default:
			log.Info("unknown message type", zap.String("type", base.Type))
			closeWith(conn, websocket.ClosePolicyViolation, protocol.CloseUnknownMessage)
			return
		}
	}
}

// handshake reads and checks the first message. On failure it answers and closes.
func (s *Server) handshake(conn *websocket.Conn) (protocol.HandshakeMsg, int64, bool) {
	var hs protocol.HandshakeMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	mt, msg, err := conn.ReadMessage()
	if err != nil {
		return hs, 0, false
	}
	payload, err := protocol.Payload(msg, mt == websocket.BinaryMessage)
	if err != nil {
		closeWith(conn, websocket.ClosePolicyViolation, protocol.CloseBadHandshake)
		return hs, 0, false
	}
	base, err := protocol.DecodeBase(payload)
	if err != nil || base.Type != protocol.TypeHandshake {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HANDSHAKE")
		return hs, 0, false
	}
	if err := protocol.Unmarshal(payload, false, &hs); err != nil {
		closeWith(conn, websocket.ClosePolicyViolation, protocol.CloseBadHandshake)
		return hs, 0, false
	}
	if hs.ProtocolVersion != protocol.Version {
		s.reject(conn, protocol.ResultVersionMismatch, 0, "server speaks "+protocol.Version)
		return hs, 0, false
	}
	if hs.ClientToken == "" {
		s.reject(conn, protocol.ResultBadRequest, 0, "missing client_token")
		return hs, 0, false
	}

	var userID int64
	if s.auth != nil {
		userID, err = s.auth.Authenticate(hs.Username, hs.Password)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidCredentials) {
				s.log.Warn("authentication error", zap.String("user", hs.Username), zap.Error(err))
			}
			s.reject(conn, protocol.ResultInvalidCredentials, 0, "")
			return hs, 0, false
		}
	}
	return hs, userID, true
}

func (s *Server) reject(conn *websocket.Conn, result string, roundID int64, message string) {
	ack := protocol.HandshakeAckMsg{
		Type:            protocol.TypeHandshakeAck,
		ProtocolVersion: protocol.Version,
		Result:          result,
		RoundID:         roundID,
		Message:         message,
	}
	data, _, err := protocol.Marshal(ack, false)
	if err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
	closeWith(conn, websocket.ClosePolicyViolation, result)
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

// transport is the engine-facing side of one websocket.
type transport struct {
	conn     *websocket.Conn
	out      chan round.Outbound
	once     sync.Once
	closeReq chan closeRequest
}

type closeRequest struct {
	reason string
	final  []round.Outbound
}

// close asks the writer to flush, write final and close; it never blocks.
func (t *transport) close(reason string, final []round.Outbound) {
	t.once.Do(func() { t.closeReq <- closeRequest{reason: reason, final: final} })
}

func (t *transport) writeLoop(ctx context.Context, cancel context.CancelFunc, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-t.closeReq:
			t.flush(log, req.final)
			closeWith(t.conn, websocket.CloseNormalClosure, req.reason)
			_ = t.conn.Close()
			cancel()
			return
		case ob := <-t.out:
			if err := t.write(ob); err != nil {
				log.Debug("write failed", zap.Error(err))
				_ = t.conn.Close()
				cancel()
				return
			}
		}
	}
}

func (t *transport) flush(log *zap.Logger, final []round.Outbound) {
	for {
		select {
		case ob := <-t.out:
			if err := t.write(ob); err != nil {
				log.Debug("flush failed", zap.Error(err))
				return
			}
		default:
			for _, ob := range final {
				if err := t.write(ob); err != nil {
					log.Debug("flush failed", zap.Error(err))
					return
				}
			}
			return
		}
	}
}

func (t *transport) write(ob round.Outbound) error {
	mt := websocket.TextMessage
	if ob.Binary {
		mt = websocket.BinaryMessage
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return t.conn.WriteMessage(mt, ob.Data)
}
