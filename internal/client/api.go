package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/immxrtalbeast/codetutor/internal/domain"
)

// CreateRoomRequest mirrors the body accepted by POST /api/rooms.
type CreateRoomRequest struct {
	SessionID       string `json:"session_id,omitempty"`
	RoomCode        string `json:"room_code,omitempty"`
	Name            string `json:"name,omitempty"`
	LifetimeMinutes int    `json:"lifetime_minutes,omitempty"`
}

type CreatedRoom struct {
	Room struct {
		Code      string    `json:"code"`
		SessionID string    `json:"session_id"`
		Name      string    `json:"name"`
		ExpiresAt time.Time `json:"expires_at"`
	} `json:"room"`
	HostKey    string `json:"host_key"`
	InviteLink string `json:"invite_link"`
}

// APIClient talks to the room server's REST endpoints.
type APIClient struct {
	base string
	http *http.Client
}

func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &APIClient{base: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *APIClient) CreateRoom(ctx context.Context, req CreateRoomRequest) (*CreatedRoom, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var res CreatedRoom
	if err := c.do(ctx, http.MethodPost, "/api/rooms", bytes.NewReader(body), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Participants lists the roster of a room as the server sees it.
func (c *APIClient) Participants(ctx context.Context, roomCode string) ([]domain.Participant, error) {
	var res struct {
		Participants []domain.Participant `json:"participants"`
	}
	path := "/api/rooms/" + url.PathEscape(roomCode) + "/participants"
	if err := c.do(ctx, http.MethodGet, path, http.NoBody, &res); err != nil {
		return nil, err
	}
	return res.Participants, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if body != http.NoBody {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("%w: %s", &StatusError{Code: resp.StatusCode}, apiErr.Error)
		}
		return &StatusError{Code: resp.StatusCode}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ParseInvite extracts the room code and session id from an invite link.
func ParseInvite(link string) (domain.InviteParams, error) {
	params, err := domain.ParseInviteLink(link)
	if err != nil {
		return domain.InviteParams{}, err
	}
	if !params.Valid() {
		return domain.InviteParams{}, domain.ErrInvalidInviteLink
	}
	return params, nil
}
