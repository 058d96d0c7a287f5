package state

import (
	"github.com/SiddharthChaturvedii/Real-Time-Tracking-Safety-WebApp-LiveTrack/pkg/transport"
	"github.com/google/uuid"
)

// Manager is the single entry point for all state-changing client events. Each
// method is one atomic operation over the party store, connection registry,
// location cache and SOS/waypoint state; callers never observe a half-applied
// transition. Result structs are post-commit snapshots safe to read without
// further locking.
type Manager interface {
	// --- Connection Lifecycle ---
	RegisterConnection(conn *transport.Connection, ipAddr string) (*Connection, error)
	// Disconnect removes the connection and everything keyed by it. The result
	// reports the implicit party departure, nil if it was in no party.
	Disconnect(connID uuid.UUID) *LeaveResult
	GetConnection(connID uuid.UUID) (*Connection, bool)

	// --- User Registry ---
	// RegisterUser upserts the display name for a connection. Idempotent; an
	// empty name falls back to DefaultName.
	RegisterUser(connID uuid.UUID, name string)

	// --- Party Operations ---
	// CreateParty opens a new party with the caller as creator and sole member.
	// A caller already in a party is first migrated out of it.
	CreateParty(connID uuid.UUID, name string) (*JoinResult, error)
	// JoinParty appends the caller to an existing party. Fails with
	// ErrPartyNotFound or ErrNameTaken (display names are unique within a
	// party, case-insensitively). Auto-migrates like CreateParty.
	JoinParty(connID uuid.UUID, name, code string) (*JoinResult, error)
	// LeaveParty removes the caller from its party. Returns nil when the
	// caller is in no party; calling it twice is a harmless no-op.
	LeaveParty(connID uuid.UUID) *LeaveResult
	// KickUser removes target from the requester's party. Only a requester
	// whose registered name matches the party's creator name may kick.
	KickUser(requesterID, targetID uuid.UUID) (*LeaveResult, error)

	// --- Location ---
	// UpdateLocation validates and caches a coordinate report. Out-of-range
	// coordinates are dropped silently (nil, false). A valid report is cached
	// even when the caller is in no party; the update is non-nil only when
	// there is a party to broadcast to.
	UpdateLocation(connID uuid.UUID, lat, lng float64) (*LocationUpdate, bool)
	GetLocation(connID uuid.UUID) (Location, bool)

	// --- SOS ---
	RaiseSOS(connID uuid.UUID) (*SOSResult, error)
	ClearSOS(connID uuid.UUID) (*SOSResult, error)

	// --- Waypoints ---
	DropWaypoint(connID uuid.UUID, lat, lng float64, label string) (*WaypointResult, error)
	ClearWaypoints(connID uuid.UUID) (*WaypointResult, error)

	// --- Read Helpers ---
	FindParty(code string) (*Party, bool)
	PartyOf(connID uuid.UUID) (string, bool)
	// PartyConnections resolves a party code to the live transport connections
	// of its members, for event fan-out.
	PartyConnections(code string) []*transport.Connection
	AllConnections() []*Connection

	// --- Per-IP accounting for the connection limiter ---
	GetIPConnectionCount(ip string) int
	FindOldestIPConnection(ip string) (*Connection, bool)
}
