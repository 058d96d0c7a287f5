package router

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/SiddharthChaturvedii/Real-Time-Tracking-Safety-WebApp-LiveTrack/pkg/state"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// nameFromPayload accepts both the bare-string form ("register-user": "Alice")
// and the object form ({"username": "Alice"}) older and newer clients send.
func nameFromPayload(payload json.RawMessage) string {
	parsed := gjson.ParseBytes(payload)
	if parsed.Type == gjson.String {
		return parsed.String()
	}
	return parsed.Get("username").String()
}

func (r *EventRouter) handleRegisterUser(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	r.stateManager.RegisterUser(conn.ID, nameFromPayload(payload))
	return nil
}

func (r *EventRouter) handleCreateParty(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	result, err := r.stateManager.CreateParty(conn.ID, nameFromPayload(payload))
	if err != nil {
		return err
	}

	r.broadcastDeparture(result.Departed)
	r.send(conn.Transport, EventPartyJoined, partyJoinedPayload{
		PartyCode: result.PartyCode,
		Users:     result.Members,
		Creator:   result.Creator,
	})
	return nil
}

func (r *EventRouter) handleJoinParty(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	code := strings.ToUpper(strings.TrimSpace(gjson.GetBytes(payload, "partyCode").String()))
	if code == "" {
		return errInvalidInput
	}

	result, err := r.stateManager.JoinParty(conn.ID, gjson.GetBytes(payload, "username").String(), code)
	if err != nil {
		return err
	}

	r.broadcastDeparture(result.Departed)

	r.send(conn.Transport, EventPartyJoined, partyJoinedPayload{
		PartyCode: result.PartyCode,
		Users:     result.Members,
		Creator:   result.Creator,
	})
	r.notifyOthers(result.PartyCode, conn.ID, EventUserJoined, result.Self)

	// Catch the joiner up on the party's live state: everyone's last known
	// position, any active SOS, and the shared waypoints.
	for _, ml := range result.Locations {
		r.send(conn.Transport, EventReceiveLocation, locationPayload{
			ID:        ml.Member.ID,
			Username:  ml.Member.Username,
			Latitude:  ml.Location.Latitude,
			Longitude: ml.Location.Longitude,
		})
	}
	for _, member := range result.ActiveSOS {
		r.send(conn.Transport, EventSOSAlert, sosPayload{ID: member.ID, Username: member.Username, Active: true})
	}
	for _, wp := range result.Waypoints {
		r.send(conn.Transport, EventWaypointDropped, wp)
	}
	return nil
}

func (r *EventRouter) handleSendLocation(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	lat := gjson.GetBytes(payload, "latitude")
	lng := gjson.GetBytes(payload, "longitude")
	if !lat.Exists() || !lng.Exists() {
		// Tolerate noisy clients: bad location reports vanish quietly.
		return nil
	}

	update, ok := r.stateManager.UpdateLocation(conn.ID, lat.Float(), lng.Float())
	if !ok || update == nil {
		return nil
	}

	// The sender already has authoritative local state, so it is excluded.
	r.notifyOthers(update.PartyCode, conn.ID, EventReceiveLocation, locationPayload{
		ID:        update.Member.ID,
		Username:  update.Member.Username,
		Latitude:  update.Location.Latitude,
		Longitude: update.Location.Longitude,
	})
	return nil
}

func (r *EventRouter) handleLeaveParty(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	result := r.stateManager.LeaveParty(conn.ID)
	if result == nil {
		// Not in a party; leaving twice is fine.
		return nil
	}
	r.send(conn.Transport, EventPartyLeft, partyCodePayload{PartyCode: result.PartyCode})
	r.broadcastDeparture(result)
	return nil
}

func (r *EventRouter) handleKickUser(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	targetID, err := uuid.Parse(gjson.GetBytes(payload, "userId").String())
	if err != nil {
		return errInvalidInput
	}

	result, err := r.stateManager.KickUser(conn.ID, targetID)
	if err != nil {
		return err
	}

	// The kicked connection is already out of the party, so it is addressed
	// directly rather than through the room.
	if target, ok := r.stateManager.GetConnection(targetID); ok {
		r.send(target.Transport, EventPartyLeft, partyCodePayload{PartyCode: result.PartyCode})
	}
	r.broadcastDeparture(result)
	return nil
}

func (r *EventRouter) handleRaiseSOS(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	result, err := r.stateManager.RaiseSOS(conn.ID)
	if err != nil {
		return err
	}
	r.notifyParty(result.PartyCode, EventSOSAlert, sosPayload{
		ID:       result.Member.ID,
		Username: result.Member.Username,
		Active:   true,
	})
	return nil
}

func (r *EventRouter) handleClearSOS(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	result, err := r.stateManager.ClearSOS(conn.ID)
	if err != nil {
		return err
	}
	r.notifyParty(result.PartyCode, EventSOSCleared, sosPayload{
		ID:       result.Member.ID,
		Username: result.Member.Username,
		Active:   false,
	})
	return nil
}

func (r *EventRouter) handleDropWaypoint(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	lat := gjson.GetBytes(payload, "lat")
	lng := gjson.GetBytes(payload, "lng")
	if !lat.Exists() || !lng.Exists() {
		return errInvalidInput
	}

	result, err := r.stateManager.DropWaypoint(conn.ID, lat.Float(), lng.Float(), gjson.GetBytes(payload, "label").String())
	if err != nil {
		return err
	}
	r.notifyParty(result.PartyCode, EventWaypointDropped, result.Waypoint)
	return nil
}

func (r *EventRouter) handleClearWaypoints(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	result, err := r.stateManager.ClearWaypoints(conn.ID)
	if err != nil {
		return err
	}
	r.notifyParty(result.PartyCode, EventWaypointsCleared, struct{}{})
	return nil
}
