package history

import (
	"errors"
	"net/http"
	"roomsync/core"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// HandleListHistory lists the journalled changes of a room, newest first.
func HandleListHistory(reader core.HistoryReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")
		limit := ParseLimit(r.URL.Query().Get("limit"))

		changes, err := reader.History(r.Context(), roomID, limit)
		if errors.Is(err, core.ErrInvalidRoomID) {
			logrus.WithField("room_id", roomID).Warn("History requested for invalid room id")
			http.Error(w, "Invalid room id", http.StatusBadRequest)
			return
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"room_id": roomID,
				"error":   err,
			}).Error("Failed to list history")
			http.Error(w, "Failed to list history", http.StatusInternalServerError)
			return
		}

		if changes == nil {
			changes = []core.Change{}
		}

		render.JSON(w, r, changes)
	}
}

// ParseLimit reads a history page size, clamped to [1, maxLimit].
func ParseLimit(value string) int {
	if value == "" {
		return defaultLimit
	}

	limit, err := strconv.Atoi(value)
	if err != nil || limit < 1 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}

	return limit
}
