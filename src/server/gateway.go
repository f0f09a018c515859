package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"trade-gateway/src/interfaces"
	"trade-gateway/src/logger"
	"trade-gateway/src/models"
	"trade-gateway/src/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Gateway
// -----------------------------------------------------------------------------

// EventHub is a singleton sessions attach to for pushed events.
type EventHub interface {
	AttachListener(l interfaces.ISessionEvents)
	DetachListener(l interfaces.ISessionEvents)
}

// Gateway terminates client connections: persistent websocket sessions on
// /ws and stateless one-frame-per-request traffic on /api/frame.
type Gateway struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine

	deps *session.Deps
	hubs []EventHub

	accepting   atomic.Bool
	connections atomic.Int64
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewGateway(cfg *models.MConfig, deps *session.Deps, hubs []EventHub, log *logger.Logger) *Gateway {
	if strings.ToUpper(cfg.LogLevel) != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	g := &Gateway{
		Config: cfg,
		Logger: log,
		engine: gin.Default(),
		deps:   deps,
		hubs:   hubs,
	}
	g.accepting.Store(true)

	g.setupRoutes()
	return g
}

// -----------------------------------------------------------------------------

func (g *Gateway) setupRoutes() {
	// REST API endpoints
	g.engine.GET("/api/health", g.getHealth)
	g.engine.POST("/api/frame", g.handleFrame)

	// WebSocket endpoint
	g.engine.GET("/ws", g.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (g *Gateway) Start() error {
	addr := fmt.Sprintf("%s:%d", g.Config.Host, g.Config.Port)
	g.Logger.Info("Starting gateway on %s", addr)
	return g.engine.Run(addr)
}

// StopAccepting turns new connections away; live sessions keep running
// while the shutdown countdown cancels their orders.
func (g *Gateway) StopAccepting() {
	g.accepting.Store(false)
	g.Logger.Info("Gateway stopped accepting connections")
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (g *Gateway) getHealth(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":      "ok",
		"connections": g.connections.Load(),
		"session":     g.deps.Positions.Session(),
	})
}

// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (g *Gateway) handleWebSocket(c *gin.Context) {
	if !g.accepting.Load() {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := newClient(g, conn, c.Query("token"))
	sess := session.NewSession(client, g.deps, g.Logger)
	client.session = sess
	for _, hub := range g.hubs {
		hub.AttachListener(sess)
	}
	g.connections.Add(1)

	go client.writePump()
	go client.readPump()
}

// onClientGone detaches a finished websocket session.
func (g *Gateway) onClientGone(client *Client) {
	client.session.Close()
	for _, hub := range g.hubs {
		hub.DetachListener(client.session)
	}
	g.connections.Add(-1)
	g.Logger.Info("Client disconnected: %s", client.RemoteAddress())
}

// -----------------------------------------------------------------------------

// handleFrame serves one frame on its own request. The token rides the
// query string or the X-Session-Token header; replies are batched into a
// single JSON array.
func (g *Gateway) handleFrame(c *gin.Context) {
	if !g.accepting.Load() {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	token := c.Query("token")
	if token == "" {
		token = c.GetHeader("X-Session-Token")
	}

	transport := newStatelessTransport(c.ClientIP())
	sess := session.NewSession(transport, g.deps, g.Logger)
	sess.OnMessageAsync(string(body), token)
	sess.Drain()
	sess.Close()

	c.Data(200, "application/json", []byte(transport.Flush()))
}
