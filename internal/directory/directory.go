// Package directory defines the narrow interface the engine uses to read and
// mutate the chat platform's member directory. The platform client implements
// it; the engine never imports the client.
package directory

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound reports that the server, role, or member does not exist.
	ErrNotFound = errors.New("directory: not found")
	// ErrForbidden reports that the platform rejected the call for lack of
	// permission (missing role hierarchy position, closed DMs, and so on).
	ErrForbidden = errors.New("directory: forbidden")
)

// Server identifies the single target server of a run.
type Server struct {
	ID   string
	Name string
}

// Role is a role resolved by ID, immutable for the duration of a run.
type Role struct {
	ID   string
	Name string
}

// Member is a point-in-time snapshot of one member. The engine reads it once
// per scan pass and never caches it across members or runs.
type Member struct {
	ID          string
	DisplayName string
	Bot         bool
	// Pending marks members still in membership screening; they hold no
	// effective roles yet and are skipped by the scan.
	Pending bool
	// JoinedAt is the zero time when the platform could not resolve it.
	JoinedAt time.Time
	RoleIDs  []string
}

// HasRole reports whether the snapshot holds the given role ID.
func (m Member) HasRole(id string) bool {
	for _, r := range m.RoleIDs {
		if r == id {
			return true
		}
	}
	return false
}

// Joined reports whether the join time was resolvable.
func (m Member) Joined() bool {
	return !m.JoinedAt.IsZero()
}

// Directory is the read/mutate surface of the platform member directory.
// Mutation calls return nil, ErrForbidden, ErrNotFound, or a transport error;
// the engine treats anything that is not a sentinel as transport.
type Directory interface {
	ResolveServer(ctx context.Context, id string) (Server, error)
	ResolveRole(ctx context.Context, serverID, roleID string) (Role, error)

	// ListMembers visits every member of the server, one snapshot at a time.
	// A non-nil error from visit aborts the listing and is returned as-is.
	ListMembers(ctx context.Context, serverID string, visit func(Member) error) error
	FetchMember(ctx context.Context, serverID, memberID string) (Member, error)

	GrantRole(ctx context.Context, serverID, memberID, roleID, reason string) error
	RemoveRole(ctx context.Context, serverID, memberID, roleID, reason string) error
}

// Messenger delivers direct messages. Delivery is best-effort.
type Messenger interface {
	DirectMessage(ctx context.Context, memberID, text string) error
}
