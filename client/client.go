// Package client talks to a roomsync server over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"roomsync/core"
	"roomsync/handlers/api/rooms"
	"strings"
)

type Client struct {
	Base string
	HTTP *http.Client
}

// New returns a client for the server at base, e.g. http://127.0.0.1:3002.
// The default HTTP client has no timeout, which long polls rely on.
func New(base string) *Client {
	return &Client{
		Base: strings.TrimRight(base, "/"),
		HTTP: http.DefaultClient,
	}
}

func (c *Client) MakeRoom(ctx context.Context, data json.RawMessage) (string, error) {
	var out rooms.MakeRoomResponse
	resp, err := c.post(ctx, "/make_room", rooms.MakeRoomRequest{Data: data})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", statusError("make room", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Room, nil
}

// List waits for the room to move past version. It returns core.ErrNotFound
// for unknown rooms and core.ErrNoChange when the server's poll timeout fires.
func (c *Client) List(ctx context.Context, room string, version uint64) (core.Room, error) {
	resp, err := c.post(ctx, "/list", rooms.ListRequest{Room: room, Version: version})
	if err != nil {
		return core.Room{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return core.Room{}, core.ErrNoChange
	default:
		return core.Room{}, statusError("list", resp)
	}

	var out *rooms.ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return core.Room{}, err
	}
	if out == nil {
		return core.Room{}, fmt.Errorf("room %q: %w", room, core.ErrNotFound)
	}
	return core.Room{ID: room, Version: out.Version, Data: out.Data}, nil
}

// Commit replaces the room's data if it is still at version. A rejected
// commit returns core.ErrVersionConflict or core.ErrNotFound.
func (c *Client) Commit(ctx context.Context, room string, version uint64, data json.RawMessage) error {
	resp, err := c.post(ctx, "/commit", rooms.CommitRequest{Room: room, Version: version, Data: data})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError("commit", resp)
	}

	var ok bool
	if err := json.NewDecoder(resp.Body).Decode(&ok); err != nil {
		return err
	}
	if ok {
		return nil
	}
	if cause := core.FromStatus(resp.Header.Get(rooms.StatusHeader)); cause != nil {
		return fmt.Errorf("commit room %q at version %d: %w", room, version, cause)
	}
	return fmt.Errorf("commit room %q at version %d rejected", room, version)
}

// Watch calls fn for every version of the room after from until ctx is done
// or fn returns an error.
func (c *Client) Watch(ctx context.Context, room string, from uint64, fn func(core.Room) error) error {
	version := from
	for {
		r, err := c.List(ctx, room, version)
		switch {
		case errors.Is(err, core.ErrNoChange):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if err := fn(r); err != nil {
			return err
		}
		version = r.Version
	}
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.HTTP.Do(req)
}

func statusError(op string, resp *http.Response) error {
	if cause := core.FromStatus(resp.Header.Get(rooms.StatusHeader)); cause != nil {
		return fmt.Errorf("%s failed: %s: %w", op, resp.Status, cause)
	}
	return fmt.Errorf("%s failed: %s", op, resp.Status)
}
