package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/devonagro/herdsync/internal/types"
)

// movementRequest is the POST /movements payload: the movement's core
// fields only, children stay local.
type movementRequest struct {
	Date          string `json:"date"`
	FarmID        int64  `json:"farmId"`
	PastureID     int64  `json:"pastureId"`
	EventID       int64  `json:"eventId"`
	EventDetailID *int64 `json:"eventDetailId,omitempty"`
	Comment       string `json:"comment,omitempty"`
}

type movementResponse struct {
	MovementID int64 `json:"movementId"`
}

// CreateMovement uploads one movement and returns the server-assigned
// identifier.
func (c *Client) CreateMovement(ctx context.Context, m *types.Movement) (int64, error) {
	body, err := json.Marshal(movementRequest{
		Date:          m.Date.UTC().Format(time.RFC3339),
		FarmID:        m.FarmID,
		PastureID:     m.PastureID,
		EventID:       m.EventID,
		EventDetailID: m.EventDetailID,
		Comment:       m.Comment,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal movement: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/movements", body)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("POST /movements: unexpected status %d", resp.StatusCode)
	}

	var created movementResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return 0, fmt.Errorf("decode movement response: %w", err)
	}
	return created.MovementID, nil
}

// HomeDashboard fetches the aggregate dashboard payload. The shape beyond
// being valid JSON is owned by the UI, so it passes through raw.
func (c *Client) HomeDashboard(ctx context.Context) (json.RawMessage, error) {
	var dashboard json.RawMessage
	if err := c.getJSON(ctx, "/movements/home-dashboard", &dashboard); err != nil {
		return nil, err
	}
	return dashboard, nil
}
