package web

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/mathisfun2048/magic-whiteboard-camera-console/pkg/hub"
)

// handleStatus returns per-channel and aggregate calibration/tracking state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.loop.Status())
}

// handleReset invalidates calibration for one channel
func (s *Server) handleReset(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("channel"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "channel must be a number",
		})
	}

	if err := s.loop.Reset(id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	s.AddLog("calibration", "channel "+c.Params("channel")+" reset")
	return c.JSON(fiber.Map{"channel": id, "state": "uncalibrated"})
}

// handleClear wipes the canvas and redraws the fiducials
func (s *Server) handleClear(c *fiber.Ctx) error {
	s.loop.Clear()
	s.AddLog("info", "canvas cleared")
	return c.JSON(fiber.Map{"cleared": true})
}

// handleSnapshot exports the canvas as a PNG download
func (s *Server) handleSnapshot(c *fiber.Ctx) error {
	png, err := s.board.Snapshot()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="whiteboard.png"`)
	return c.Send(png)
}

// handleGetLogs returns recent log entries
func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return c.JSON(s.logs)
}

// handleCanvasWS streams canvas JPEG frames to a client
func (s *Server) handleCanvasWS(c *websocket.Conn) {
	client := hub.NewClient(s.canvasHub, c)
	client.Run()
}

// handleStatusWS streams status updates to a client
func (s *Server) handleStatusWS(c *websocket.Conn) {
	// Send current status immediately, then stream changes
	c.WriteJSON(s.loop.Status())

	client := hub.NewClient(s.statusHub, c)
	client.Run()
}
