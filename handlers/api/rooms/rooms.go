package rooms

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"roomsync/core"
	"sort"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// StatusHeader carries the reason behind a false or null result.
const StatusHeader = "X-Room-Status"

const maxBodyBytes = 5 << 20

type (
	MakeRoomRequest struct {
		Data json.RawMessage `json:"data"`
	}

	MakeRoomResponse struct {
		Room string `json:"room"`
	}

	ListRequest struct {
		Room    string `json:"room"`
		Version uint64 `json:"version"`
	}

	ListResponse struct {
		Version uint64          `json:"version"`
		Data    json.RawMessage `json:"data"`
	}

	CommitRequest struct {
		Room    string          `json:"room"`
		Version uint64          `json:"version"`
		Data    json.RawMessage `json:"data"`
	}

	RoomInfo struct {
		ID          string `json:"id"`
		Version     uint64 `json:"version"`
		Subscribers int    `json:"subscribers"`
	}

	// SubscriberCounter reports live push subscribers per room.
	SubscriberCounter interface {
		Subscribers() map[string]int
	}
)

// decode reads a JSON request body. An empty body decodes to the zero request.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes), v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	logrus.WithField("error", err).Warn("Failed to decode request")
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, map[string]string{"error": "Invalid request body"})
	return false
}

func HandleMakeRoom(store core.RoomStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MakeRoomRequest
		if !decode(w, r, &req) {
			return
		}

		id, err := store.Create(r.Context(), req.Data)
		if err != nil {
			logrus.WithField("error", err).Error("Failed to create room")
			w.Header().Set(StatusHeader, core.Status(err))
			if errors.Is(err, core.ErrNameExhausted) {
				render.Status(r, http.StatusServiceUnavailable)
			} else {
				render.Status(r, http.StatusInternalServerError)
			}
			render.JSON(w, r, map[string]string{"error": "Failed to create room"})
			return
		}

		render.JSON(w, r, MakeRoomResponse{Room: id})
	}
}

// HandleList long-polls until the room's version exceeds the requested one.
// Unknown rooms answer null; a configured poll timeout answers 204.
func HandleList(store core.RoomStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ListRequest
		if !decode(w, r, &req) {
			return
		}

		room, err := store.Read(r.Context(), req.Room, req.Version)
		switch {
		case err == nil:
			render.JSON(w, r, ListResponse{Version: room.Version, Data: room.Data})
		case errors.Is(err, core.ErrNotFound):
			w.Header().Set(StatusHeader, core.Status(err))
			render.JSON(w, r, nil)
		case errors.Is(err, core.ErrNoChange):
			w.Header().Set(StatusHeader, core.Status(err))
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			logrus.WithField("room_id", req.Room).Debug("Client left before room changed")
		default:
			logrus.WithField("error", err).Error("Failed to read room")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read room"})
		}
	}
}

func HandleCommit(store core.RoomStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CommitRequest
		if !decode(w, r, &req) {
			return
		}

		_, err := store.Commit(r.Context(), req.Room, req.Version, req.Data)
		switch {
		case err == nil:
			render.JSON(w, r, true)
		case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrVersionConflict):
			w.Header().Set(StatusHeader, core.Status(err))
			render.JSON(w, r, false)
		default:
			logrus.WithField("error", err).Error("Failed to commit room")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to commit room"})
		}
	}
}

// HandleListRooms lists rooms, busiest first. counter may be nil.
func HandleListRooms(store core.RoomStore, counter SubscriberCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var subscribers map[string]int
		if counter != nil {
			subscribers = counter.Subscribers()
		}

		stored := store.Rooms(r.Context())
		rooms := make([]RoomInfo, 0, len(stored))
		for _, room := range stored {
			rooms = append(rooms, RoomInfo{
				ID:          room.ID,
				Version:     room.Version,
				Subscribers: subscribers[room.ID],
			})
		}

		sort.SliceStable(rooms, func(i, j int) bool {
			if rooms[i].Subscribers == rooms[j].Subscribers {
				return rooms[i].ID < rooms[j].ID
			}
			return rooms[i].Subscribers > rooms[j].Subscribers
		})

		render.JSON(w, r, rooms)
	}
}
