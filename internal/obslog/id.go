package obslog

import "github.com/google/uuid"

// NewRequestID generates a correlation id for a single store request.
func NewRequestID() string {
	return uuid.NewString()
}
