package registry

import (
	"fmt"
	"strconv"
	"sync"

	"termwatch/internal/logging"
	"termwatch/internal/terminal"
)

// Registry tracks which terminals currently hold a live gateway connection.
// Membership keeps insertion order but behaves as a set. The lock spans each
// mutation plus its membership log line, so concurrent add/remove calls can
// never log an inconsistent total.
type Registry struct {
	mutex   sync.Mutex
	members []terminal.Identity
	logger  *logging.Logger
}

// Snapshot is a point-in-time copy of the registry contents.
type Snapshot struct {
	Count   int
	Members []terminal.Identity
}

func New(logger *logging.Logger) *Registry {
	return &Registry{logger: logger}
}

// Add inserts the identity if absent. Re-adding a present identity is a no-op
// apart from the membership log line.
func (registry *Registry) Add(identity terminal.Identity) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	if registry.indexLocked(identity) < 0 {
		registry.members = append(registry.members, identity)
	}
	registry.logMembershipLocked()
}

// Remove deletes the identity if present.
func (registry *Registry) Remove(identity terminal.Identity) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	if index := registry.indexLocked(identity); index >= 0 {
		registry.members = append(registry.members[:index], registry.members[index+1:]...)
	}
	registry.logMembershipLocked()
}

func (registry *Registry) Snapshot() Snapshot {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	members := make([]terminal.Identity, len(registry.members))
	copy(members, registry.members)
	return Snapshot{Count: len(members), Members: members}
}

func (registry *Registry) indexLocked(identity terminal.Identity) int {
	for index, member := range registry.members {
		if member == identity {
			return index
		}
	}
	return -1
}

func (registry *Registry) logMembershipLocked() {
	if registry.logger == nil {
		return
	}
	registry.logger.Info("connected terminals", map[string]string{
		"total":   strconv.Itoa(len(registry.members)),
		"members": fmt.Sprintf("%v", registry.members),
	})
}
