package state

import (
	"time"

	"github.com/SiddharthChaturvedii/Real-Time-Tracking-Safety-WebApp-LiveTrack/pkg/transport"
	"github.com/google/uuid"
)

// DefaultName is used when a client never registered a display name.
const DefaultName = "Guest"

// representation of a single transport-layer connection.
type Connection struct {
	ID        uuid.UUID
	IPAddress string
	Name      string // display name, DefaultName until register-user
	Transport *transport.Connection
	CreatedAt time.Time
}

// Member is the wire-level identity of a party member. ID is the connection
// uuid in string form; it is not stable across reconnects.
type Member struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Party is a group of connections sharing location and alert state.
// Members keep join order; the first member is the creator.
type Party struct {
	Code      string
	Creator   string
	Members   []Member
	SOS       map[uuid.UUID]bool
	Waypoints []Waypoint
}

// Location is the last reported coordinate pair for a connection.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Waypoint is an ephemeral shared marker dropped by a party member. It lives
// until the party closes or a member clears the party's waypoints.
type Waypoint struct {
	ID    string  `json:"id"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label"`
}

// MemberLocation pairs a member with their cached location, used to seed a
// joining client with the positions of everyone already in the party.
type MemberLocation struct {
	Member   Member
	Location Location
}

// JoinResult is the outcome of CreateParty or JoinParty.
type JoinResult struct {
	PartyCode string
	Creator   string
	Members   []Member
	Self      Member

	// Departed reports the implicit leave from a previous party when the
	// connection auto-migrated, nil otherwise.
	Departed *LeaveResult

	// Snapshot of the party the joiner needs to catch up on.
	Locations []MemberLocation
	ActiveSOS []Member
	Waypoints []Waypoint
}

// LeaveResult is the outcome of a member leaving a party by any path
// (explicit leave, kick, disconnect, auto-migration).
type LeaveResult struct {
	PartyCode string
	Member    Member
	// Closed is true when the departure emptied the party and it was removed.
	Closed bool
	// SOSCleared is true when the departing member had an active SOS.
	SOSCleared bool
}

// LocationUpdate is the broadcastable outcome of a location report. It is nil
// when the reporter is not in a party (the location is still cached).
type LocationUpdate struct {
	PartyCode string
	Member    Member
	Location  Location
}

type SOSResult struct {
	PartyCode string
	Member    Member
	Active    bool
}

type WaypointResult struct {
	PartyCode string
	Waypoint  Waypoint
}
