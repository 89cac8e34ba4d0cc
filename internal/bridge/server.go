package bridge

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/response"
)

// RouterConfig carries the bridge's HTTP settings.
type RouterConfig struct {
	GinMode        string
	Token          string
	AllowedOrigins []string
	// ConnectBurst bounds WebSocket connects per IP per minute.
	ConnectBurst int
}

// SetupRouter configures the bridge routes:
//
//	GET /health  liveness, no auth
//	GET /state   current session snapshot
//	GET /ws      shell WebSocket
func SetupRouter(ctx context.Context, b *Bridge, cfg RouterConfig) *gin.Engine {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware(b.log))
	router.Use(middleware.Brotli())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok", "shell": b.Connected()})
	})

	burst := cfg.ConnectBurst
	if burst <= 0 {
		burst = 10
	}
	limiter := middleware.NewRateLimiter(ctx, burst, time.Minute)

	protected := router.Group("/")
	protected.Use(middleware.RequireBridgeToken(cfg.Token))
	{
		protected.GET("/state", middleware.NoStore(), b.handleState)
		protected.GET("/ws", limiter.Middleware(), b.ServeWS)
	}

	return router
}

// handleState godoc
// GET /state
// Returns the live snapshot when a session is attached, otherwise the last
// one pushed.
func (b *Bridge) handleState(c *gin.Context) {
	b.mu.Lock()
	cmds := b.commands
	b.mu.Unlock()

	if cmds != nil {
		response.Success(c, http.StatusOK, cmds.Snapshot())
		return
	}
	if s, ok := b.LastState(); ok {
		response.Success(c, http.StatusOK, s)
		return
	}
	response.Fail(c, http.StatusServiceUnavailable, response.ErrSessionNotReady)
}

// ServeWS godoc
// GET /ws
// Upgrades the kiosk shell connection and runs its read loop.
func (b *Bridge) ServeWS(c *gin.Context) {
	conn, err := b.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		response.RequestLogger(c).Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	cl := newClient(uuid.NewString(), conn, b.log)
	go cl.writePump()
	b.attach(cl)
	defer func() {
		b.detach(cl)
		cl.close()
	}()

	for {
		raw, err := readMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				cl.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				cl.log.Debug().Msg("Connection closed")
			}
			return
		}
		b.dispatch(cl, raw)
	}
}

// NewServer wraps handler in an http.Server bound to addr.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
