package hub

import (
	"encoding/json"
	"testing"
	"time"
)

func waitForClients(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d clients, have %d", want, h.ClientCount())
}

func TestHub_BroadcastReachesRegisteredClients(t *testing.T) {
	h := New("test")
	go h.Run()

	c := &Client{hub: h, send: make(chan Message, 4)}
	h.register <- c
	waitForClients(t, h, 1)

	h.BroadcastBinary([]byte{0xFF, 0xD8})

	select {
	case msg := <-c.send:
		if msg.Type != BinaryMessage {
			t.Errorf("expected a binary message, got type %d", msg.Type)
		}
		if len(msg.Data) != 2 || msg.Data[0] != 0xFF {
			t.Errorf("unexpected payload %v", msg.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast never reached the client")
	}
}

func TestHub_BroadcastJSONEncodes(t *testing.T) {
	h := New("test")
	go h.Run()

	c := &Client{hub: h, send: make(chan Message, 4)}
	h.register <- c
	waitForClients(t, h, 1)

	if err := h.BroadcastJSON(map[string]int{"channel": 1}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	select {
	case msg := <-c.send:
		if msg.Type != JSONMessage {
			t.Errorf("expected a JSON message, got type %d", msg.Type)
		}
		var decoded map[string]int
		if err := json.Unmarshal(msg.Data, &decoded); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if decoded["channel"] != 1 {
			t.Errorf("unexpected payload %v", decoded)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast never reached the client")
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := New("test")
	go h.Run()

	// A full send buffer marks the client as too slow
	c := &Client{hub: h, send: make(chan Message, 1)}
	c.send <- NewBinaryMessage([]byte{0})
	h.register <- c
	waitForClients(t, h, 1)

	h.BroadcastBinary([]byte{1})
	waitForClients(t, h, 0)
}

func TestHub_UnregisterClosesSendChannel(t *testing.T) {
	h := New("test")
	go h.Run()

	c := &Client{hub: h, send: make(chan Message, 4)}
	h.register <- c
	waitForClients(t, h, 1)

	h.unregister <- c
	waitForClients(t, h, 0)

	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("expected the send channel closed, got a message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send channel never closed")
	}
}
