// Package barrier implements the distributed rendezvous service: N processes
// connect once, then repeatedly register for a round and block until all of
// them have registered.
package barrier

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sufield/junction/internal/core/domain"
)

// Lines written by the barrier service.
const (
	ReplyResume    = "resume"
	ReplyMalformed = "nok malformed_registration!"
	// ReplyDuplicate goes, at release time, to a connection whose
	// registration was ignored because another connection holds the id.
	ReplyDuplicate = "nok duplicate_registration!"
)

// MaxLineLength bounds a registration line. A longer line is answered with
// ReplyMalformed and the connection is closed.
const MaxLineLength = 4096

// Registration is one participant's arrival for a round:
// "<participantId> <callbackHost> <callbackPort>".
type Registration struct {
	ID       string
	Callback domain.Location
}

// ParseRegistration parses a registration line.
func ParseRegistration(line string) (Registration, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Registration{}, fmt.Errorf("registration needs 3 fields, got %d", len(fields))
	}
	port, err := strconv.Atoi(fields[2])
	if err != nil {
		return Registration{}, fmt.Errorf("invalid callback port %q", fields[2])
	}
	loc, err := domain.NewLocation(fields[1], port)
	if err != nil {
		return Registration{}, err
	}
	return Registration{ID: fields[0], Callback: loc}, nil
}

// String formats the registration as a protocol line without the terminator.
func (r Registration) String() string {
	return fmt.Sprintf("%s %s %d", r.ID, r.Callback.Host(), r.Callback.Port())
}
