package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/educhat-backend/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestSSEHubOrderingAndReconnect(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := uuid.New().String()

	clientA := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientA, channel)

	first := SSEMessage{Channel: channel, Event: SSEEventChatCreated, Data: map[string]any{"seq": 1}}
	second := SSEMessage{Channel: channel, Event: SSEEventChatRenamed, Data: map[string]any{"seq": 2}}
	hub.Broadcast(first)
	hub.Broadcast(second)

	gotFirst := recvMessage(t, clientA.Outbound, time.Second)
	gotSecond := recvMessage(t, clientA.Outbound, time.Second)
	if gotFirst.Event != SSEEventChatCreated {
		t.Fatalf("first event: want=%s got=%s", SSEEventChatCreated, gotFirst.Event)
	}
	if gotSecond.Event != SSEEventChatRenamed {
		t.Fatalf("second event: want=%s got=%s", SSEEventChatRenamed, gotSecond.Event)
	}

	hub.CloseClient(clientA)
	select {
	case _, ok := <-clientA.Outbound:
		if ok {
			t.Fatalf("clientA outbound should be closed after disconnect")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for clientA channel close")
	}

	clientB := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientB, channel)
	reconnect := SSEMessage{Channel: channel, Event: SSEEventChatDeleted, Data: map[string]any{"seq": 3}}
	hub.Broadcast(reconnect)
	gotReconnect := recvMessage(t, clientB.Outbound, time.Second)
	if gotReconnect.Event != SSEEventChatDeleted {
		t.Fatalf("reconnect event: want=%s got=%s", SSEEventChatDeleted, gotReconnect.Event)
	}
}

func TestSSEHubForeignChannelIsolation(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))

	subscribed := hub.NewSSEClient(uuid.New())
	bystander := hub.NewSSEClient(uuid.New())
	hub.AddChannel(subscribed, "alpha")
	hub.AddChannel(bystander, "beta")

	hub.Broadcast(SSEMessage{Channel: "alpha", Event: SSEEventChatCreated})

	recvMessage(t, subscribed.Outbound, time.Second)
	select {
	case msg := <-bystander.Outbound:
		t.Fatalf("bystander received foreign message: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}
