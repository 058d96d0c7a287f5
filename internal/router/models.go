package router

import (
	"encoding/json"

	"github.com/SiddharthChaturvedii/Real-Time-Tracking-Safety-WebApp-LiveTrack/pkg/state"
)

type ClientMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type ServerMessage struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Inbound event names. The sos/sos-signal and clear-sos/sos-clear pairs are
// aliases kept for older clients; they share one handler each.
const (
	EventRegisterUser   = "register-user"
	EventCreateParty    = "createParty"
	EventJoinParty      = "joinParty"
	EventSendLocation   = "send-location"
	EventLeaveParty     = "leaveParty"
	EventKickUser       = "kick-user"
	EventSOSSignal      = "sos-signal"
	EventSOSAlias       = "sos"
	EventSOSClear       = "sos-clear"
	EventClearSOSAlias  = "clear-sos"
	EventDropWaypoint   = "drop-waypoint"
	EventClearWaypoints = "clear-waypoints"
)

// Outbound event names.
const (
	EventPartyJoined      = "partyJoined"
	EventUserJoined       = "userJoined"
	EventPartyError       = "partyError"
	EventReceiveLocation  = "receive-location"
	EventUserDisconnected = "user-disconnected"
	EventPartyLeft        = "partyLeft"
	EventPartyClosed      = "partyClosed"
	EventSOSAlert         = "sos-alert"
	EventSOSCleared       = "sos-cleared"
	EventWaypointDropped  = "waypoint-dropped"
	EventWaypointsCleared = "waypoints-cleared"
)

type partyJoinedPayload struct {
	PartyCode string         `json:"partyCode"`
	Users     []state.Member `json:"users"`
	Creator   string         `json:"creator"`
}

type locationPayload struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type memberIDPayload struct {
	ID string `json:"id"`
}

type partyCodePayload struct {
	PartyCode string `json:"partyCode"`
}

type sosPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Active   bool   `json:"active"`
}
