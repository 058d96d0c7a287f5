package router

import (
	"encoding/json"
	"log/slog"

	"github.com/SiddharthChaturvedii/Real-Time-Tracking-Safety-WebApp-LiveTrack/pkg/state"
	"github.com/SiddharthChaturvedii/Real-Time-Tracking-Safety-WebApp-LiveTrack/pkg/transport"
	"github.com/google/uuid"
)

// Audience mapping: every coordinator result is turned into frames for the
// origin connection, a whole party, or a party minus the sender. Delivery is
// best-effort; a frame to a connection that is already gone is a no-op.

func (r *EventRouter) send(conn *transport.Connection, event string, payload any) {
	if conn == nil {
		return
	}
	frame, err := json.Marshal(ServerMessage{Event: event, Payload: payload})
	if err != nil {
		r.logger.Error("Failed to marshal server message", slog.String("event", event), slog.Any("error", err))
		return
	}
	conn.Send(frame)
}

func (r *EventRouter) notifyParty(code, event string, payload any) {
	for _, conn := range r.stateManager.PartyConnections(code) {
		r.send(conn, event, payload)
	}
}

func (r *EventRouter) notifyOthers(code string, exclude uuid.UUID, event string, payload any) {
	for _, conn := range r.stateManager.PartyConnections(code) {
		if conn.ID() == exclude {
			continue
		}
		r.send(conn, event, payload)
	}
}

// broadcastDeparture tells a party's remaining members that one of them is
// gone, whatever the path out was (leave, kick, disconnect, auto-migration).
func (r *EventRouter) broadcastDeparture(result *state.LeaveResult) {
	if result == nil {
		return
	}
	if result.SOSCleared {
		r.notifyParty(result.PartyCode, EventSOSCleared, sosPayload{
			ID:       result.Member.ID,
			Username: result.Member.Username,
			Active:   false,
		})
	}
	r.notifyParty(result.PartyCode, EventUserDisconnected, memberIDPayload{ID: result.Member.ID})
	if result.Closed {
		// The party has no members left, so in practice nobody hears this.
		r.notifyParty(result.PartyCode, EventPartyClosed, partyCodePayload{PartyCode: result.PartyCode})
		r.logger.Info("Party closed", slog.String("partyCode", result.PartyCode))
	}
}
