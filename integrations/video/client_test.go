package video

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/psicanalise-online/platform/config"
	"github.com/psicanalise-online/platform/services"
)

func TestCreateRoom(t *testing.T) {
	start := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rooms", r.URL.Path)
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var body createRoomRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "private", body.Privacy)
		require.Equal(t, start.Add(-10*time.Minute).Unix(), body.Properties.NotBefore)

		_ = json.NewEncoder(w).Encode(map[string]string{"name": body.Name})
	}))
	defer srv.Close()

	client := NewClient(config.VideoConfig{APIURL: srv.URL, APIKey: "key", Domain: "clinic.daily.co", Timeout: 5 * time.Second})
	room, err := client.CreateRoom(context.Background(), services.RoomRequest{
		Name:      "appt-42",
		NotBefore: start.Add(-10 * time.Minute),
		ExpiresAt: start.Add(time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, "appt-42", room.Name)
	require.Equal(t, "https://clinic.daily.co/appt-42", room.URL)
}

func TestCreateMeetingTokenError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid-request-error", "info": "room not found"})
	}))
	defer srv.Close()

	client := NewClient(config.VideoConfig{APIURL: srv.URL, APIKey: "key", Timeout: 5 * time.Second})
	_, err := client.CreateMeetingToken(context.Background(), services.MeetingTokenRequest{RoomName: "missing"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "room not found")
}

func TestVideoNotConfigured(t *testing.T) {
	_, err := NewClient(config.VideoConfig{}).CreateRoom(context.Background(), services.RoomRequest{})
	require.ErrorIs(t, err, ErrNotConfigured)
}
