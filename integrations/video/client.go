package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/psicanalise-online/platform/config"
	"github.com/psicanalise-online/platform/services"
)

var ErrNotConfigured = errors.New("video provider is not configured")

// Client creates private rooms and meeting tokens on a Daily-compatible API.
type Client struct {
	cfg config.VideoConfig
}

var _ services.VideoRooms = (*Client)(nil)

func NewClient(cfg config.VideoConfig) *Client {
	return &Client{cfg: cfg}
}

type roomProperties struct {
	NotBefore  int64 `json:"nbf"`
	Expires    int64 `json:"exp"`
	EnableChat bool  `json:"enable_chat"`
	EjectAtExp bool  `json:"eject_at_room_exp"`
}

type createRoomRequest struct {
	Name       string         `json:"name"`
	Privacy    string         `json:"privacy"`
	Properties roomProperties `json:"properties"`
}

type roomResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type tokenProperties struct {
	RoomName string `json:"room_name"`
	UserName string `json:"user_name,omitempty"`
	IsOwner  bool   `json:"is_owner"`
	Expires  int64  `json:"exp"`
}

type tokenRequest struct {
	Properties tokenProperties `json:"properties"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type apiError struct {
	Error string `json:"error"`
	Info  string `json:"info"`
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	if c.cfg.APIKey == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	a := fiber.Post(c.cfg.APIURL+path).
		Set(fiber.HeaderAuthorization, "Bearer "+c.cfg.APIKey).
		Timeout(c.cfg.Timeout).
		JSON(body)

	code, raw, errs := a.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("video provider request failed: %w", errors.Join(errs...))
	}
	if code >= 300 {
		var apiErr apiError
		_ = json.Unmarshal(raw, &apiErr)
		msg := apiErr.Info
		if msg == "" {
			msg = apiErr.Error
		}
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return fmt.Errorf("video provider returned %d: %s", code, msg)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode video provider response: %w", err)
	}
	return nil
}

func (c *Client) CreateRoom(ctx context.Context, req services.RoomRequest) (*services.Room, error) {
	var resp roomResponse
	err := c.post(ctx, "/rooms", createRoomRequest{
		Name:    req.Name,
		Privacy: "private",
		Properties: roomProperties{
			NotBefore:  req.NotBefore.Unix(),
			Expires:    req.ExpiresAt.Unix(),
			EnableChat: true,
			EjectAtExp: true,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.URL == "" && c.cfg.Domain != "" {
		resp.URL = "https://" + c.cfg.Domain + "/" + resp.Name
	}
	if resp.URL == "" {
		return nil, errors.New("video provider returned no room url")
	}
	return &services.Room{Name: resp.Name, URL: resp.URL}, nil
}

func (c *Client) CreateMeetingToken(ctx context.Context, req services.MeetingTokenRequest) (string, error) {
	var resp tokenResponse
	err := c.post(ctx, "/meeting-tokens", tokenRequest{Properties: tokenProperties{
		RoomName: req.RoomName,
		UserName: req.UserName,
		IsOwner:  req.IsOwner,
		Expires:  req.ExpiresAt.Unix(),
	}}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("video provider returned no meeting token")
	}
	return resp.Token, nil
}
