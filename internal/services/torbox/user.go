package torbox

import (
	"context"
	"fmt"
)

// DefaultSlots is assumed when the plan cannot be read
const DefaultSlots = 3

// User is the subset of the account data used to size the download queue
type User struct {
	ID                        int    `json:"id"`
	Email                     string `json:"email"`
	Plan                      int    `json:"plan"`
	AdditionalConcurrentSlots int    `json:"additional_concurrent_slots"`
}

// Slots is the number of torrents the plan may run at once
func (u *User) Slots() int {
	var base int
	switch u.Plan {
	case 1: // basic
		base = 3
	case 2: // pro
		base = 10
	case 3: // standard
		base = 5
	}
	return base + u.AdditionalConcurrentSlots
}

// GetUser returns the account data
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	var result Response[User]
	if err := c.get(ctx, c.baseURL+"/user/me", &result); err != nil {
		return nil, err
	}
	if err := result.err(); err != nil {
		return nil, fmt.Errorf("failed to get user data: %w", err)
	}
	return &result.Data, nil
}

// MaxSlots returns the concurrent download slots of the account
func (c *Client) MaxSlots(ctx context.Context) (int, error) {
	user, err := c.GetUser(ctx)
	if err != nil {
		return DefaultSlots, err
	}
	return user.Slots(), nil
}
