// Package config provides configuration helpers for whiteboard commands.
package config

import (
	"os"
	"strconv"
)

// Default console configuration.
const (
	DefaultPort         = "8090"
	DefaultCameraIndex  = 0
	DefaultPointerColor = "green"
)

// Port returns the web console port from the PORT env var.
func Port() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return DefaultPort
}

// CameraIndex returns the local camera device index from CAMERA_INDEX.
func CameraIndex() int {
	if v := os.Getenv("CAMERA_INDEX"); v != "" {
		if idx, err := strconv.Atoi(v); err == nil && idx >= 0 {
			return idx
		}
	}
	return DefaultCameraIndex
}

// SignallingURL returns the websocket signalling server URL for the remote
// camera from SIGNALLING_URL. Empty means no remote channel.
func SignallingURL() string {
	return os.Getenv("SIGNALLING_URL")
}

// PointerColor returns the tracked pointer color name from POINTER_COLOR.
func PointerColor() string {
	if c := os.Getenv("POINTER_COLOR"); c != "" {
		return c
	}
	return DefaultPointerColor
}

// LogLevel returns the log level from LOG_LEVEL or "info".
func LogLevel() string {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}
