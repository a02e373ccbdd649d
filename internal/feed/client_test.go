package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/salus/internal/salus"
)

// newFeedServer serves one websocket connection that writes frames and
// then closes normally.
func newFeedServer(t *testing.T, frames ...string) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(WriteWait))
		// Wait for the client's close reply
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDial_ReadsMessagesUntilClosed(t *testing.T) {
	url := newFeedServer(t,
		`{"device_id":"STA00012345","name":"Hall","online":false}`,
		`{"device_id":"STA00012345","name":"Hall","online":true,"state":{"target_temperature_c":21,"current_temperature_c":19.5,"frost_temperature_c":10,"heating_active":true,"mode":"ON"},"updated_at":"2025-01-06T07:30:00Z"}`,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, url)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	first, err := conn.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if first.Online || first.State != nil {
		t.Errorf("first message = %+v, want offline without state", first)
	}

	second, err := conn.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	want := salus.ThermostatState{
		TargetTemperatureC:  21,
		CurrentTemperatureC: 19.5,
		FrostTemperatureC:   10,
		HeatingActive:       true,
		Mode:                salus.ModeOn,
	}
	if second.State == nil || *second.State != want {
		t.Errorf("state = %+v, want %+v", second.State, want)
	}
	if second.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be decoded")
	}

	_, err = conn.Next()
	if !IsClosed(err) {
		t.Errorf("Next() after close error = %v, want normal closure", err)
	}
}

func TestConn_InvalidMessage(t *testing.T) {
	url := newFeedServer(t, `not json`)

	conn, err := Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	_, err = conn.Next()
	if err == nil || !strings.Contains(err.Error(), "invalid feed message") {
		t.Errorf("Next() error = %v, want invalid feed message", err)
	}
	if IsClosed(err) {
		t.Error("a decode failure is not a closed feed")
	}
}

func TestDial_NotAFeed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err == nil {
		t.Fatal("Dial() should fail against a plain HTTP endpoint")
	}
	if !strings.Contains(err.Error(), "HTTP 404") {
		t.Errorf("error = %v, want HTTP status", err)
	}
}
