package uuidx

import "github.com/google/uuid"

// New returns a time-ordered (version 7) UUID, so run ids sort by creation time.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

func NewString() string {
	return New().String()
}

// OrNew returns id unless it is the nil UUID, in which case a fresh one is generated.
func OrNew(id uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return New()
	}
	return id
}
