// ABOUTME: Back-office user management calls

package client

import (
	"context"
	"net/http"
)

// ListUsers returns one page of accounts (admin).
func (c *Client) ListUsers(ctx context.Context, page int) (*UserPage, error) {
	var data UserPage
	if err := c.getData(ctx, http.MethodGet, pageQuery("/users", page, 0), nil, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetUser returns one account (admin).
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	var data struct {
		User User `json:"user"`
	}
	if err := c.getData(ctx, http.MethodGet, pathf("/users/%s", id), nil, nil, &data); err != nil {
		return nil, err
	}
	return &data.User, nil
}

// UpdateUser changes an account (admin).
func (c *Client) UpdateUser(ctx context.Context, id string, in UserUpdate) (*User, error) {
	var data struct {
		User User `json:"user"`
	}
	if err := c.getData(ctx, http.MethodPut, pathf("/users/%s", id), in, nil, &data); err != nil {
		return nil, err
	}
	return &data.User, nil
}

// DeleteUser removes an account (admin).
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.getData(ctx, http.MethodDelete, pathf("/users/%s", id), nil, nil, nil)
}
