package terminal

import (
	"fmt"
	"strings"
)

// Identity names one payment terminal at the gateway. The pair is what the
// registry tracks; equality is structural.
type Identity struct {
	MID string
	TID string
}

func NewIdentity(mid, tid string) (Identity, error) {
	mid = strings.TrimSpace(mid)
	tid = strings.TrimSpace(tid)
	if mid == "" {
		return Identity{}, fmt.Errorf("merchant id is required")
	}
	if tid == "" {
		return Identity{}, fmt.Errorf("terminal id is required")
	}
	return Identity{MID: mid, TID: tid}, nil
}

func (identity Identity) String() string {
	return identity.MID + "/" + identity.TID
}

// LogPrefix is the marker carried on every log line about this terminal.
func (identity Identity) LogPrefix() string {
	return fmt.Sprintf("[MID:%s TID:%s]", identity.MID, identity.TID)
}

// Credentials holds the access token shared by every terminal in a run.
// The token must never reach a log line; see gateway.Endpoint.MaskedURL.
type Credentials struct {
	Token string
}
