package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/rickgao/paco-sync/internal/protocol"
)

type createMatchResponse struct {
	Key string `json:"key"`
}

// CreateMatch creates a match and returns its key. It is not retried.
func (c *Client) CreateMatch(ctx context.Context) (string, error) {
	var resp createMatchResponse
	if err := c.post(ctx, "/api/matches", &resp); err != nil {
		return "", fmt.Errorf("create match: %w", err)
	}
	if resp.Key == "" {
		return "", errors.New("create match: empty key in response")
	}
	return resp.Key, nil
}

// GetMatch fetches the current authoritative state of a match.
func (c *Client) GetMatch(ctx context.Context, key string) (protocol.CurrentMatchState, error) {
	var state protocol.CurrentMatchState
	if err := c.get(ctx, "/api/matches/"+url.PathEscape(key), &state); err != nil {
		return protocol.CurrentMatchState{}, fmt.Errorf("get match %s: %w", key, err)
	}
	return state, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil)
}
