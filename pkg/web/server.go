// Package web provides the operator dashboard: session status over
// HTTP plus a live websocket feed of state transitions.
package web

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/fablab-bergamo/squid-game-doll/internal/log"
	"github.com/fablab-bergamo/squid-game-doll/pkg/hub"
	"github.com/fablab-bergamo/squid-game-doll/pkg/store"
	"github.com/fablab-bergamo/squid-game-doll/pkg/targeting"
)

// statusPushInterval is how often the active session's snapshot is
// pushed to websocket clients.
const statusPushInterval = 200 * time.Millisecond

// History is the slice of the session store the dashboard reads.
type History interface {
	Recent(n int) ([]store.Record, error)
}

// Server is the dashboard server. It only observes the runner; the
// targeting loop never depends on it.
type Server struct {
	app    *fiber.App
	port   string
	runner *targeting.Runner

	// History is optional; without it /api/sessions returns empty.
	History History

	statusHub *hub.Hub

	// runCtx parents every session started over the API, so process
	// shutdown cancels them instead of orphaning a live laser.
	runCtx context.Context
}

// statusReply is the /api/status payload.
type statusReply struct {
	Busy    bool                `json:"busy"`
	Session *targeting.Snapshot `json:"session,omitempty"`
}

// targetRequest is the /api/target payload.
type targetRequest struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Deadband      float64 `json:"deadband,omitempty"`
	MaxDurationMs int64   `json:"max_duration_ms,omitempty"`
}

// NewServer creates the dashboard server.
func NewServer(port string, runner *targeting.Runner) *Server {
	s := &Server{
		port:      port,
		runner:    runner,
		statusHub: hub.New("status"),
		runCtx:    context.Background(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Doll Dashboard",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/sessions", s.handleSessions)
	api.Post("/target", s.handleTarget)
	api.Post("/abort", s.handleAbort)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.runCtx = ctx
	go s.statusHub.Run()
	go s.pushLoop(ctx)

	go func() {
		<-ctx.Done()
		s.app.Shutdown()
	}()

	log.Info("dashboard listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// pushLoop broadcasts the active session snapshot at a fixed rate.
func (s *Server) pushLoop(ctx context.Context) {
	ticker := time.NewTicker(statusPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.statusHub.ClientCount() == 0 {
				continue
			}
			snap, ok := s.runner.Snapshot()
			reply := statusReply{Busy: ok}
			if ok {
				reply.Session = &snap
			}
			s.statusHub.BroadcastJSON(reply)
		}
	}
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	snap, ok := s.runner.Snapshot()
	reply := statusReply{Busy: ok}
	if ok {
		reply.Session = &snap
	}
	return c.JSON(reply)
}

func (s *Server) handleSessions(c *fiber.Ctx) error {
	if s.History == nil {
		return c.JSON([]store.Record{})
	}
	records, err := s.History.Recent(50)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if records == nil {
		records = []store.Record{}
	}
	return c.JSON(records)
}

func (s *Server) handleTarget(c *fiber.Ctx) error {
	var req targetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	spec := targeting.TargetSpec{
		Point:          targeting.NormalizedPoint{X: req.X, Y: req.Y},
		DeadbandRadius: req.Deadband,
		MaxDuration:    time.Duration(req.MaxDurationMs) * time.Millisecond,
	}

	_, err := s.runner.Start(s.runCtx, spec)
	if err == targeting.ErrSessionActive {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) handleAbort(c *fiber.Ctx) error {
	s.runner.Abort()
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) handleStatusWS(conn *websocket.Conn) {
	client := hub.NewClient(s.statusHub, conn)
	client.Run()
}
