package video

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"gocv.io/x/gocv"

	"github.com/mathisfun2048/magic-whiteboard-camera-console/internal/log"
)

const (
	// producerName is the meta name the remote camera device registers under
	producerName = "whiteboard-cam"

	connectTimeout = 15 * time.Second
	decodeInterval = 100 * time.Millisecond
)

// Peer receives the remote device's camera stream over WebRTC. Signalling
// runs over a websocket server both devices join; we act as a recv-only
// video consumer. The newest decoded frame is kept for non-blocking pulls.
type Peer struct {
	signallingURL string
	clientID      string

	ws   *websocket.Conn
	wsMu sync.Mutex
	pc   *webrtc.PeerConnection

	peerID     string
	producerID string
	sessionID  string

	frameMu    sync.RWMutex
	latestJPEG []byte

	trackReady chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
}

// Dial joins the signalling server, finds the remote camera producer, and
// negotiates the WebRTC session. It blocks until video flows or times out.
func Dial(signallingURL string) (*Peer, error) {
	p := &Peer{
		signallingURL: signallingURL,
		clientID:      uuid.NewString(),
		trackReady:    make(chan struct{}, 1),
		done:          make(chan struct{}),
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.Dial(signallingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("signalling connect: %w", err)
	}
	p.ws = ws

	if err := p.join(); err != nil {
		ws.Close()
		return nil, fmt.Errorf("signalling join: %w", err)
	}
	if err := p.findProducer(); err != nil {
		ws.Close()
		return nil, fmt.Errorf("find producer: %w", err)
	}
	if err := p.createPeerConnection(); err != nil {
		ws.Close()
		return nil, fmt.Errorf("peer connection: %w", err)
	}
	if err := p.writeJSON(map[string]string{
		"type":   "startSession",
		"peerId": p.producerID,
	}); err != nil {
		p.Close()
		return nil, fmt.Errorf("start session: %w", err)
	}

	go p.handleSignalling()

	select {
	case <-p.trackReady:
		log.Info("remote camera connected", "producer", p.producerID)
	case <-time.After(connectTimeout):
		p.Close()
		return nil, fmt.Errorf("timeout waiting for remote video")
	}
	return p, nil
}

// writeJSON serializes signalling writes; the websocket connection allows
// only one concurrent writer.
func (p *Peer) writeJSON(v interface{}) error {
	p.wsMu.Lock()
	defer p.wsMu.Unlock()
	return p.ws.WriteJSON(v)
}

// join announces this client and waits for the server's welcome.
func (p *Peer) join() error {
	if err := p.writeJSON(map[string]string{
		"type":     "join",
		"role":     "display",
		"clientId": p.clientID,
	}); err != nil {
		return err
	}

	p.ws.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer p.ws.SetReadDeadline(time.Time{})

	_, msg, err := p.ws.ReadMessage()
	if err != nil {
		return err
	}
	var welcome struct {
		Type   string `json:"type"`
		PeerID string `json:"peerId"`
	}
	if err := json.Unmarshal(msg, &welcome); err != nil {
		return err
	}
	if welcome.Type != "welcome" {
		return fmt.Errorf("expected welcome, got %q", welcome.Type)
	}
	p.peerID = welcome.PeerID
	return nil
}

func (p *Peer) findProducer() error {
	if err := p.writeJSON(map[string]string{"type": "list"}); err != nil {
		return err
	}

	p.ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer p.ws.SetReadDeadline(time.Time{})

	_, msg, err := p.ws.ReadMessage()
	if err != nil {
		return err
	}
	var resp struct {
		Type      string `json:"type"`
		Producers []struct {
			ID   string            `json:"id"`
			Meta map[string]string `json:"meta"`
		} `json:"producers"`
	}
	if err := json.Unmarshal(msg, &resp); err != nil {
		return err
	}
	for _, prod := range resp.Producers {
		if prod.Meta["name"] == producerName {
			p.producerID = prod.ID
			return nil
		}
	}
	return fmt.Errorf("producer %q not among %d producers", producerName, len(resp.Producers))
}

func (p *Peer) createPeerConnection() error {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}
	p.pc = pc

	if _, err = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return err
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Debug("got track", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go p.readVideoTrack(track)
		}
	})
	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate != nil {
			p.sendICECandidate(candidate)
		}
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debug("webrtc state", "state", state.String())
	})
	return nil
}

func (p *Peer) handleSignalling() {
	for {
		select {
		case <-p.done:
			return
		default:
		}

		_, msg, err := p.ws.ReadMessage()
		if err != nil {
			select {
			case <-p.done:
			default:
				log.Warn("signalling read failed", "err", err)
			}
			return
		}

		var base struct {
			Type      string `json:"type"`
			SessionID string `json:"sessionId"`
		}
		json.Unmarshal(msg, &base)

		switch base.Type {
		case "sessionStarted":
			p.sessionID = base.SessionID
		case "peer":
			p.handlePeerMessage(msg)
		case "endSession":
			return
		}
	}
}

func (p *Peer) handlePeerMessage(msg []byte) {
	var peerMsg struct {
		SDP *struct {
			Type string `json:"type"`
			SDP  string `json:"sdp"`
		} `json:"sdp"`
		ICE *struct {
			Candidate     string  `json:"candidate"`
			SDPMid        *string `json:"sdpMid"`
			SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
		} `json:"ice"`
	}
	if err := json.Unmarshal(msg, &peerMsg); err != nil {
		return
	}

	if peerMsg.SDP != nil && peerMsg.SDP.Type == "offer" {
		offer := webrtc.SessionDescription{
			Type: webrtc.SDPTypeOffer,
			SDP:  peerMsg.SDP.SDP,
		}
		if err := p.pc.SetRemoteDescription(offer); err != nil {
			log.Warn("set remote description failed", "err", err)
			return
		}
		answer, err := p.pc.CreateAnswer(nil)
		if err != nil {
			log.Warn("create answer failed", "err", err)
			return
		}
		if err := p.pc.SetLocalDescription(answer); err != nil {
			log.Warn("set local description failed", "err", err)
			return
		}
		p.writeJSON(map[string]interface{}{
			"type":      "peer",
			"sessionId": p.sessionID,
			"sdp": map[string]string{
				"type": answer.Type.String(),
				"sdp":  answer.SDP,
			},
		})
	}

	if peerMsg.ICE != nil {
		p.pc.AddICECandidate(webrtc.ICECandidateInit{
			Candidate:     peerMsg.ICE.Candidate,
			SDPMid:        peerMsg.ICE.SDPMid,
			SDPMLineIndex: peerMsg.ICE.SDPMLineIndex,
		})
	}
}

func (p *Peer) sendICECandidate(candidate *webrtc.ICECandidate) {
	if p.sessionID == "" {
		return
	}
	init := candidate.ToJSON()
	p.writeJSON(map[string]interface{}{
		"type":      "peer",
		"sessionId": p.sessionID,
		"ice": map[string]interface{}{
			"candidate":     init.Candidate,
			"sdpMid":        init.SDPMid,
			"sdpMLineIndex": init.SDPMLineIndex,
		},
	})
}

// readVideoTrack accumulates H264 payload from RTP packets and decodes a
// frame at a bounded rate.
func (p *Peer) readVideoTrack(track *webrtc.TrackRemote) {
	select {
	case p.trackReady <- struct{}{}:
	default:
	}

	var nalBuffer bytes.Buffer
	lastDecode := time.Now()

	for {
		select {
		case <-p.done:
			return
		default:
		}

		var pkt *rtp.Packet
		var err error
		if pkt, _, err = track.ReadRTP(); err != nil {
			return
		}
		nalBuffer.Write(pkt.Payload)

		if time.Since(lastDecode) >= decodeInterval {
			if jpeg := decodeH264(nalBuffer.Bytes()); jpeg != nil {
				p.frameMu.Lock()
				p.latestJPEG = jpeg
				p.frameMu.Unlock()
			}
			nalBuffer.Reset()
			lastDecode = time.Now()
		}
	}
}

// decodeH264 converts accumulated NAL units to one JPEG via an ffmpeg pipe.
// Returns nil when there is not yet enough data for a frame.
func decodeH264(nalData []byte) []byte {
	if len(nalData) < 100 {
		return nil
	}

	cmd := exec.Command("ffmpeg",
		"-f", "h264",
		"-i", "pipe:0",
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "3",
		"pipe:1",
	)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil
	}
	if err := cmd.Start(); err != nil {
		return nil
	}
	go func() {
		stdin.Write(nalData)
		stdin.Close()
	}()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			// Not enough data for a frame yet
			return nil
		}
	case <-time.After(200 * time.Millisecond):
		cmd.Process.Kill()
		<-done
		return nil
	}

	if stdout.Len() < 1000 {
		return nil
	}
	return stdout.Bytes()
}

// Latest decodes the most recent remote frame into dst. Returns false until
// the first frame has been decoded.
func (p *Peer) Latest(dst *gocv.Mat) bool {
	p.frameMu.RLock()
	jpeg := p.latestJPEG
	p.frameMu.RUnlock()

	if jpeg == nil {
		return false
	}
	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil || img.Empty() {
		return false
	}
	defer img.Close()
	img.CopyTo(dst)
	return true
}

// Close tears down the WebRTC session and signalling connection.
func (p *Peer) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		if p.pc != nil {
			p.pc.Close()
		}
		if p.ws != nil {
			p.ws.Close()
		}
	})
	return nil
}
