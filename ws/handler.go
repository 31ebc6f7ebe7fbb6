package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/repository"
	"github.com/psicanalise-online/platform/services"
)

// TokenParser validates access tokens presented on the socket handshake.
type TokenParser interface {
	ParseToken(raw string, kind services.TokenKind) (*services.SessionClaims, error)
}

// ProfileLookup loads the account behind a token so blocked or deleted
// users cannot keep a socket open with a still-valid access token.
type ProfileLookup interface {
	GetProfile(ctx context.Context, id uint) (*models.Profile, error)
}

type Handler struct {
	Hub            *Hub
	Tokens         TokenParser
	Profiles       ProfileLookup
	OriginPatterns []string
	Log            *zap.Logger
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// ServeHTTP upgrades an authenticated request to a push-only socket. Browsers
// cannot set headers on WebSocket requests so the token travels as ?token=.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("token"))
	if raw == "" {
		writeJSONError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := h.Tokens.ParseToken(raw, services.TokenAccess)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	profile, err := h.Profiles.GetProfile(r.Context(), claims.UserID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			h.Log.Error("websocket profile lookup failed", zap.Uint("user_id", claims.UserID), zap.Error(err))
		}
		writeJSONError(w, http.StatusUnauthorized, "invalid session")
		return
	}
	if !profile.CanAuthenticate() {
		writeJSONError(w, http.StatusForbidden, "account is not available")
		return
	}

	opts := &websocket.AcceptOptions{}
	for _, origin := range h.OriginPatterns {
		if origin == "*" {
			opts.InsecureSkipVerify = true
			break
		}
		opts.OriginPatterns = append(opts.OriginPatterns, strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://"))
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.Log.Debug("websocket accept failed", zap.Error(err))
		return
	}

	// Clients only receive; reading is still needed so control frames are handled.
	ctx := conn.CloseRead(r.Context())

	client := h.Hub.AddClient(profile.ID, conn)
	defer h.Hub.RemoveClient(client)
	h.Log.Debug("websocket connected", zap.Uint("user_id", profile.ID))

	select {
	case <-ctx.Done():
	case <-client.ctx.Done():
	}
}
