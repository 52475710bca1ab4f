package core

import "errors"

var (
	ErrNotFound        = errors.New("room not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrNameExhausted   = errors.New("no free room name")

	// ErrNoChange is returned by a bounded Read that expired before any commit.
	ErrNoChange = errors.New("no change")

	// ErrInvalidRoomID is returned by journals that cannot name a room's storage.
	ErrInvalidRoomID = errors.New("invalid room id")
)

// Status maps a store error to the short code used in the X-Room-Status header.
func Status(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrVersionConflict):
		return "conflict"
	case errors.Is(err, ErrNoChange):
		return "no_change"
	case errors.Is(err, ErrNameExhausted):
		return "exhausted"
	}
	return "error"
}

// FromStatus is the inverse of Status for the known codes.
func FromStatus(status string) error {
	switch status {
	case "not_found":
		return ErrNotFound
	case "conflict":
		return ErrVersionConflict
	case "no_change":
		return ErrNoChange
	case "exhausted":
		return ErrNameExhausted
	}
	return nil
}
