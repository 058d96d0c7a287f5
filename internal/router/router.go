package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/SiddharthChaturvedii/Real-Time-Tracking-Safety-WebApp-LiveTrack/pkg/state"
	"github.com/google/uuid"
)

// errInvalidInput flags a payload that could not be parsed into what the
// event requires. It reaches the client as a generic partyError.
var errInvalidInput = errors.New("invalid input")

// HandlerFunc processes one inbound client event for a registered connection.
type HandlerFunc func(ctx context.Context, conn *state.Connection, payload json.RawMessage) error

type EventRouter struct {
	logger       *slog.Logger
	stateManager state.Manager
	handlers     map[string]HandlerFunc
}

func NewEventRouter(logger *slog.Logger, stateManager state.Manager) *EventRouter {
	r := &EventRouter{
		logger:       logger.With(slog.String("component", "event_router")),
		stateManager: stateManager,
		handlers:     make(map[string]HandlerFunc),
	}

	r.registerHandler(EventRegisterUser, r.handleRegisterUser)
	r.registerHandler(EventCreateParty, r.handleCreateParty)
	r.registerHandler(EventJoinParty, r.handleJoinParty)
	r.registerHandler(EventSendLocation, r.handleSendLocation)
	r.registerHandler(EventLeaveParty, r.handleLeaveParty)
	r.registerHandler(EventKickUser, r.handleKickUser)
	r.registerHandler(EventSOSSignal, r.handleRaiseSOS)
	r.registerHandler(EventSOSAlias, r.handleRaiseSOS)
	r.registerHandler(EventSOSClear, r.handleClearSOS)
	r.registerHandler(EventClearSOSAlias, r.handleClearSOS)
	r.registerHandler(EventDropWaypoint, r.handleDropWaypoint)
	r.registerHandler(EventClearWaypoints, r.handleClearWaypoints)

	return r
}

func (r *EventRouter) registerHandler(event string, fn HandlerFunc) {
	if _, exists := r.handlers[event]; exists {
		panic("event handler already registered: " + event)
	}
	r.handlers[event] = fn
}

// HandleMessage is the transport's onMessage callback. Unknown events and
// unparseable frames are logged and dropped; handler errors with a wire
// message go back to the origin as partyError, anything else is logged.
func (r *EventRouter) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	var clientMsg ClientMessage
	if err := json.Unmarshal(msg, &clientMsg); err != nil {
		r.logger.Warn("Failed to unmarshal client message", "connID", connID, "error", err)
		return
	}

	handler, ok := r.handlers[clientMsg.Event]
	if !ok {
		r.logger.Warn("Received unknown event", "event", clientMsg.Event, "connID", connID)
		return
	}

	conn, ok := r.stateManager.GetConnection(connID)
	if !ok {
		r.logger.Error("No state for active connection", slog.String("connID", connID.String()))
		return
	}

	r.logger.Debug("Dispatching event", slog.String("event", clientMsg.Event), slog.String("connID", connID.String()))
	if err := handler(ctx, conn, clientMsg.Payload); err != nil {
		if wireMsg, ok := wireMessage(err); ok {
			r.send(conn.Transport, EventPartyError, wireMsg)
			return
		}
		r.logger.Error("Event handler failed",
			slog.String("event", clientMsg.Event),
			slog.String("connID", connID.String()),
			slog.Any("error", err),
		)
	}
}

// HandleDisconnect is the transport's onClose callback: full cleanup plus the
// departure broadcast to whatever party the connection was in.
func (r *EventRouter) HandleDisconnect(connID uuid.UUID) {
	result := r.stateManager.Disconnect(connID)
	r.broadcastDeparture(result)
}

// wireMessage maps coordinator errors to the short human-readable strings the
// client shows. Errors without a mapping never leave the server.
func wireMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, state.ErrPartyNotFound):
		return "Party does not exist", true
	case errors.Is(err, state.ErrNameTaken):
		return "Username already taken in this party", true
	case errors.Is(err, state.ErrNotInParty):
		return "You are not in a party", true
	case errors.Is(err, state.ErrNotAuthorized):
		return "Only the host can kick users", true
	case errors.Is(err, state.ErrMemberNotFound):
		return "User not in your party", true
	case errors.Is(err, errInvalidInput), errors.Is(err, state.ErrInvalidCoordinates):
		return "Invalid input", true
	}
	return "", false
}
