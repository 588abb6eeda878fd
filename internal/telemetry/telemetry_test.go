package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func TestBroadcasterFansOutToSubscriber(t *testing.T) {
	b := NewBroadcaster()
	server := httptest.NewServer(http.HandlerFunc(b.ServeHTTP))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// Give ServeHTTP a moment to register the subscriber before publishing.
	time.Sleep(20 * time.Millisecond)

	scheduleID := uuid.New()
	b.Publish(Event{Type: StepStarted, ScheduleID: scheduleID, Timestamp: time.Now()})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.Type != StepStarted || got.ScheduleID != scheduleID {
		t.Fatalf("got %+v, want StepStarted for %s", got, scheduleID)
	}
}

func TestPublishWithNoSubscribersIsANoOp(t *testing.T) {
	b := NewBroadcaster()
	b.Publish(Event{Type: TaskCompleted}) // must not panic or block
}

func TestMarshalForLogProducesJSON(t *testing.T) {
	line := MarshalForLog(Event{Type: ScheduleFailed, Error: "boom"})
	if !strings.Contains(line, "ScheduleFailed") || !strings.Contains(line, "boom") {
		t.Fatalf("MarshalForLog = %q, missing expected fields", line)
	}
}
