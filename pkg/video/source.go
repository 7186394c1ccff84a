// Package video provides camera frame sources for the whiteboard pipeline:
// a local webcam and a remote WebRTC peer. Both expose pull-based,
// non-blocking access to the most recently decoded frame.
package video

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Webcam captures frames from a local camera device via OpenCV. A reader
// goroutine keeps the latest frame; Latest never blocks on the device.
type Webcam struct {
	cap *gocv.VideoCapture

	mu     sync.RWMutex
	latest gocv.Mat
	ready  bool

	done chan struct{}
	wg   sync.WaitGroup
}

// OpenWebcam opens the camera at the given device index and starts capturing.
func OpenWebcam(device int) (*Webcam, error) {
	cap, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", device, err)
	}

	w := &Webcam{
		cap:    cap,
		latest: gocv.NewMat(),
		done:   make(chan struct{}),
	}
	w.wg.Add(1)
	go w.reader()
	return w, nil
}

func (w *Webcam) reader() {
	defer w.wg.Done()

	frame := gocv.NewMat()
	defer frame.Close()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		if !w.cap.Read(&frame) || frame.Empty() {
			continue
		}
		w.mu.Lock()
		frame.CopyTo(&w.latest)
		w.ready = true
		w.mu.Unlock()
	}
}

// Latest copies the most recent frame into dst. Returns false before the
// first frame arrives.
func (w *Webcam) Latest(dst *gocv.Mat) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if !w.ready {
		return false
	}
	w.latest.CopyTo(dst)
	return true
}

// Close stops the reader and releases the device and frame buffer.
func (w *Webcam) Close() error {
	close(w.done)
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.latest.Close()
	w.ready = false
	return w.cap.Close()
}
