package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/seenuaaa/casmi/internal/app"
	"github.com/seenuaaa/casmi/internal/config"
	"github.com/seenuaaa/casmi/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

// Controller terminates signaling WebSockets and feeds events into the
// presence engine. It owns the transport resources; the engine owns state.
type Controller struct {
	engine     *app.Engine
	joins      *JoinRateLimiter
	readLimit  int64
	sendBuffer int
}

func NewController(engine *app.Engine, cfg *config.Config) *Controller {
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = 32
	}
	return &Controller{
		engine:     engine,
		joins:      NewJoinRateLimiter(cfg.JoinLimit, cfg.JoinWindow),
		readLimit:  cfg.ReadLimit,
		sendBuffer: buffer,
	}
}

type wsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and starts the pumps. No presence
// state is created here: a connection only enters the registry on
// join-room.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	connID := core.ConnID(uuid.NewString())
	log.Info().Str("module", "signal").
		Str("conn", string(connID)).Str("client", c.GetString("client_token")).
		Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.readLimit > 0 {
		ws.SetReadLimit(ctl.readLimit)
	}

	conn := &wsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.sendBuffer),
	}

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, connID, conn)
}
