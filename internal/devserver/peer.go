package devserver

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/paco-sync/internal/protocol"
)

// peer is one websocket client. Frames are written by writeLoop only.
type peer struct {
	conn   *websocket.Conn
	cfg    Config
	logger *slog.Logger

	send chan []byte
	done chan struct{}
	once sync.Once
}

func newPeer(conn *websocket.Conn, cfg Config, logger *slog.Logger) *peer {
	return &peer{
		conn:   conn,
		cfg:    cfg,
		logger: logger.With("remote", conn.RemoteAddr().String()),
		send:   make(chan []byte, cfg.SendBuffer),
		done:   make(chan struct{}),
	}
}

// sendMsg queues a server message. A peer that cannot keep up is dropped.
func (p *peer) sendMsg(msg protocol.ServerMessage) {
	data, err := protocol.EncodeServer(msg)
	if err != nil {
		p.logger.Error("encode failed", "error", err)
		return
	}
	select {
	case p.send <- data:
	case <-p.done:
	default:
		p.logger.Warn("peer send buffer full, disconnecting")
		p.close()
	}
}

func (p *peer) writeLoop() {
	for {
		select {
		case <-p.done:
			return
		case data := <-p.send:
			if p.cfg.WriteTimeout > 0 {
				p.conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout))
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				p.logger.Debug("write failed", "error", err)
				p.close()
				return
			}
		}
	}
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}
