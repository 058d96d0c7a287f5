package state

import "errors"

// Sentinel errors surfaced to the acting connection as partyError events.
// No state is mutated when any of these is returned.
var (
	ErrPartyNotFound  = errors.New("party does not exist")
	ErrNameTaken      = errors.New("username already taken in this party")
	ErrNotInParty     = errors.New("connection is not in a party")
	ErrNotAuthorized  = errors.New("only the party creator may do this")
	ErrMemberNotFound = errors.New("target is not a member of this party")

	// ErrInvalidCoordinates rejects waypoints outside lat [-90,90] /
	// lng [-180,180]. Location reports are dropped silently instead.
	ErrInvalidCoordinates = errors.New("coordinates out of range")
)
