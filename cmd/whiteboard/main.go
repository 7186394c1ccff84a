// Magic Whiteboard camera console
//
// Turns two camera feeds pointed at a fiducial-marked surface into one
// shared drawing canvas: move a colored pointer in front of either camera
// and it draws at the matching board position.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mathisfun2048/magic-whiteboard-camera-console/internal/config"
	"github.com/mathisfun2048/magic-whiteboard-camera-console/internal/log"
	"github.com/mathisfun2048/magic-whiteboard-camera-console/pkg/board"
	"github.com/mathisfun2048/magic-whiteboard-camera-console/pkg/pipeline"
	"github.com/mathisfun2048/magic-whiteboard-camera-console/pkg/video"
	"github.com/mathisfun2048/magic-whiteboard-camera-console/pkg/vision"
	"github.com/mathisfun2048/magic-whiteboard-camera-console/pkg/web"
)

func main() {
	log.Init(config.LogLevel())

	fmt.Println("🖊️  Magic Whiteboard")
	fmt.Println("====================")

	cap, err := vision.Shared()
	if err != nil {
		fmt.Printf("⚠️  Marker detection unavailable: %v\n", err)
		fmt.Println("   Channels will track but never calibrate.")
	}

	b := board.New(board.DefaultConfig(), cap)
	defer b.Close()

	cfg := pipeline.DefaultConfig()
	cfg.PointerLower, cfg.PointerUpper = pipeline.PointerRange(config.PointerColor())

	loop := pipeline.New(cfg, b)
	defer loop.Close()

	// Channel 1: local webcam
	channels := 0
	webcam, err := video.OpenWebcam(config.CameraIndex())
	if err != nil {
		fmt.Printf("⚠️  Local camera unavailable: %v\n", err)
	} else {
		defer webcam.Close()
		loop.AddChannel(pipeline.ChannelConfig{ID: 1, Source: webcam})
		channels++
		fmt.Printf("📷 Channel 1: local camera %d\n", config.CameraIndex())
	}

	// Channel 2: remote device over WebRTC, when a signalling server is set
	if url := config.SignallingURL(); url != "" {
		peer, err := video.Dial(url)
		if err != nil {
			fmt.Printf("⚠️  Remote camera unavailable: %v\n", err)
		} else {
			defer peer.Close()
			loop.AddChannel(pipeline.ChannelConfig{ID: 2, Source: peer})
			channels++
			fmt.Printf("📡 Channel 2: remote camera via %s\n", url)
		}
	}

	if channels == 0 {
		fmt.Println("❌ No camera channels available")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n👋 Shutting down")
		cancel()
	}()

	srv := web.NewServer(config.Port(), loop, b)
	srv.StartAsync()
	go srv.Publish(ctx, 100*time.Millisecond)
	defer srv.Shutdown()

	fmt.Printf("🌐 Console: http://localhost:%s\n", config.Port())
	fmt.Println("🔄 Point both cameras at all four fiducials to calibrate")

	loop.Run(ctx)
}
