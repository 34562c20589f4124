package util

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// NewRunID returns a short random identifier used to correlate the messages
// and log lines of one ingestion run. Graph record IDs are deterministic
// (see pkg/kg); run IDs are the one place randomness is wanted.
func NewRunID() string {
	id, err := gonanoid.New(12)
	if err != nil {
		panic(err)
	}
	return "run_" + id
}
