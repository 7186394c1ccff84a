// Package web provides the operator console for the whiteboard: calibration
// and tracking status, channel reset, canvas clear, snapshot export, and the
// live canvas feed.
package web

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/mathisfun2048/magic-whiteboard-camera-console/internal/log"
	"github.com/mathisfun2048/magic-whiteboard-camera-console/pkg/board"
	"github.com/mathisfun2048/magic-whiteboard-camera-console/pkg/hub"
	"github.com/mathisfun2048/magic-whiteboard-camera-console/pkg/pipeline"
)

// LogEntry represents a log line for the console
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // info, calibration, error
	Message string `json:"message"`
}

// Server is the web console server
type Server struct {
	app  *fiber.App
	port string

	loop  *pipeline.Loop
	board *board.Board

	// Log buffer (last 500 entries)
	logs   []LogEntry
	logsMu sync.RWMutex

	// Hubs for websocket broadcast
	canvasHub *hub.Hub
	statusHub *hub.Hub
}

// NewServer creates the console server around a running pipeline loop.
func NewServer(port string, loop *pipeline.Loop, b *board.Board) *Server {
	s := &Server{
		port:      port,
		loop:      loop,
		board:     b,
		logs:      make([]LogEntry, 0, 500),
		canvasHub: hub.New("canvas"),
		statusHub: hub.New("status"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Magic Whiteboard Console",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// Static files
	app.Static("/", "./web")

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/reset/:channel", s.handleReset)
	api.Post("/clear", s.handleClear)
	api.Get("/snapshot", s.handleSnapshot)
	api.Get("/logs", s.handleGetLogs)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/canvas", websocket.New(s.handleCanvasWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// Start starts the console server
func (s *Server) Start() error {
	log.Info("web console listening", "addr", "http://localhost:"+s.port)

	go s.canvasHub.Run()
	go s.statusHub.Run()

	return s.app.Listen(":" + s.port)
}

// StartAsync starts the console server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("web server stopped", "err", err)
		}
	}()
}

// Publish streams the canvas and status to connected clients until the
// context is canceled. Canvas frames go out at the given interval; status
// only when it changes.
func (s *Server) Publish(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastStatus pipeline.Status
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.canvasHub.ClientCount() > 0 {
				if frame, err := s.board.EncodeJPEG(); err == nil {
					s.canvasHub.BroadcastBinary(frame)
				}
			}
			if st := s.loop.Status(); !reflect.DeepEqual(st, lastStatus) {
				lastStatus = st
				s.statusHub.BroadcastJSON(st)
			}
		}
	}
}

// AddLog appends an entry to the console log ring
func (s *Server) AddLog(logType, message string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Type:    logType,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > 500 {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()
}

// Shutdown gracefully stops the console server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
