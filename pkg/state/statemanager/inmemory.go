package statemanager

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/SiddharthChaturvedii/Real-Time-Tracking-Safety-WebApp-LiveTrack/pkg/state"
	"github.com/SiddharthChaturvedii/Real-Time-Tracking-Safety-WebApp-LiveTrack/pkg/transport"
	"github.com/google/uuid"
)

const (
	defaultCodeLength   = 6
	defaultCodeAttempts = 10
)

// Options tunes party code generation.
type Options struct {
	CodeLength   int
	CodeAttempts int
}

// InMemoryManager holds all coordination state in process memory. A single
// mutex guards every map: each Manager operation touches several of them and
// must commit or fail as one unit, so finer-grained locking would only open
// windows between the stores.
type InMemoryManager struct {
	mu sync.RWMutex

	conns       map[uuid.UUID]*state.Connection
	locations   map[uuid.UUID]state.Location
	parties     map[string]*state.Party
	memberParty map[uuid.UUID]string // inverse index: connection -> party code

	codeLength   int
	codeAttempts int

	logger *slog.Logger
}

func NewInMemoryManager(logger *slog.Logger, opts Options) *InMemoryManager {
	if opts.CodeLength <= 0 {
		opts.CodeLength = defaultCodeLength
	}
	if opts.CodeAttempts <= 0 {
		opts.CodeAttempts = defaultCodeAttempts
	}
	return &InMemoryManager{
		conns:        make(map[uuid.UUID]*state.Connection),
		locations:    make(map[uuid.UUID]state.Location),
		parties:      make(map[string]*state.Party),
		memberParty:  make(map[uuid.UUID]string),
		codeLength:   opts.CodeLength,
		codeAttempts: opts.CodeAttempts,
		logger:       logger.With(slog.String("component", "state_manager_inmemory")),
	}
}

// compile-time check to ensure InMemoryManager implements Manager.
var _ state.Manager = (*InMemoryManager)(nil)

// --- Connection Lifecycle ---

func (m *InMemoryManager) RegisterConnection(conn *transport.Connection, ipAddr string) (*state.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	connID := conn.ID()
	if _, exists := m.conns[connID]; exists {
		return nil, errors.New("connection is already registered")
	}
	newConn := &state.Connection{
		ID:        connID,
		IPAddress: ipAddr,
		Name:      state.DefaultName,
		Transport: conn,
		CreatedAt: time.Now(),
	}
	m.conns[connID] = newConn
	m.logger.Debug("Connection registered", slog.String("connID", connID.String()))
	return newConn, nil
}

func (m *InMemoryManager) Disconnect(connID uuid.UUID) *state.LeaveResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := m.leaveLocked(connID)
	delete(m.locations, connID)
	delete(m.conns, connID)

	m.logger.Debug("Connection deregistered", slog.String("connID", connID.String()))
	return result
}

func (m *InMemoryManager) GetConnection(connID uuid.UUID) (*state.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[connID]
	return conn, ok
}

// --- User Registry ---

func (m *InMemoryManager) RegisterUser(connID uuid.UUID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		m.logger.Warn("register-user for unknown connection", slog.String("connID", connID.String()))
		return
	}
	conn.Name = normalizeName(name)
	m.logger.Debug("User registered", slog.String("connID", connID.String()), slog.String("name", conn.Name))
}

// --- Party Operations ---

func (m *InMemoryManager) CreateParty(connID uuid.UUID, name string) (*state.JoinResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		return nil, errors.New("cannot create party for unknown connection")
	}
	conn.Name = normalizeName(name)

	// A connection belongs to at most one party: migrate out of the old one.
	departed := m.leaveLocked(connID)
	if departed != nil {
		m.logger.Debug("Auto-migrated out of previous party",
			slog.String("connID", connID.String()),
			slog.String("partyCode", departed.PartyCode),
		)
	}

	code := m.generateCodeLocked()
	self := state.Member{ID: connID.String(), Username: conn.Name}
	party := &state.Party{
		Code:    code,
		Creator: conn.Name,
		Members: []state.Member{self},
		SOS:     make(map[uuid.UUID]bool),
	}
	m.parties[code] = party
	m.memberParty[connID] = code

	m.logger.Debug("Party created",
		slog.String("partyCode", code),
		slog.String("creator", conn.Name),
	)
	return &state.JoinResult{
		PartyCode: code,
		Creator:   party.Creator,
		Members:   snapshotMembers(party),
		Self:      self,
		Departed:  departed,
	}, nil
}

func (m *InMemoryManager) JoinParty(connID uuid.UUID, name, code string) (*state.JoinResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		return nil, errors.New("cannot join party for unknown connection")
	}
	name = normalizeName(name)

	// Validate before mutating anything, including the auto-migration.
	party, ok := m.parties[code]
	if !ok {
		return nil, state.ErrPartyNotFound
	}
	selfID := connID.String()
	for _, member := range party.Members {
		if member.ID != selfID && strings.EqualFold(member.Username, name) {
			return nil, state.ErrNameTaken
		}
	}

	conn.Name = name
	self := state.Member{ID: selfID, Username: name}

	if m.memberParty[connID] == code {
		// Re-join of the current party: refresh the member's name in place.
		for i := range party.Members {
			if party.Members[i].ID == selfID {
				party.Members[i].Username = name
			}
		}
		return m.joinResultLocked(party, self, nil), nil
	}

	departed := m.leaveLocked(connID)
	party.Members = append(party.Members, self)
	m.memberParty[connID] = code

	m.logger.Debug("Member joined party",
		slog.String("partyCode", code),
		slog.String("name", name),
	)
	return m.joinResultLocked(party, self, departed), nil
}

// joinResultLocked builds the snapshot a joining client needs to catch up:
// the member list plus every cached location, active SOS and waypoint.
// Caller holds m.mu.
func (m *InMemoryManager) joinResultLocked(party *state.Party, self state.Member, departed *state.LeaveResult) *state.JoinResult {
	result := &state.JoinResult{
		PartyCode: party.Code,
		Creator:   party.Creator,
		Members:   snapshotMembers(party),
		Self:      self,
		Departed:  departed,
		Waypoints: append([]state.Waypoint(nil), party.Waypoints...),
	}
	for _, member := range party.Members {
		if member.ID == self.ID {
			continue
		}
		memberID, err := uuid.Parse(member.ID)
		if err != nil {
			continue
		}
		if loc, ok := m.locations[memberID]; ok {
			result.Locations = append(result.Locations, state.MemberLocation{Member: member, Location: loc})
		}
		if party.SOS[memberID] {
			result.ActiveSOS = append(result.ActiveSOS, member)
		}
	}
	return result
}

func (m *InMemoryManager) LeaveParty(connID uuid.UUID) *state.LeaveResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaveLocked(connID)
}

// leaveLocked removes the connection from its party, drops its location and
// SOS entries, and closes the party when it empties. Returns nil when the
// connection was in no party, so double-leaves are no-ops. Caller holds m.mu.
func (m *InMemoryManager) leaveLocked(connID uuid.UUID) *state.LeaveResult {
	code, ok := m.memberParty[connID]
	if !ok {
		return nil
	}
	delete(m.memberParty, connID)
	delete(m.locations, connID)

	party, ok := m.parties[code]
	if !ok {
		// Stale inverse index entry; nothing left to clean up.
		return nil
	}

	member := state.Member{ID: connID.String(), Username: state.DefaultName}
	kept := party.Members[:0]
	for _, existing := range party.Members {
		if existing.ID == member.ID {
			member = existing
			continue
		}
		kept = append(kept, existing)
	}
	party.Members = kept

	sosCleared := party.SOS[connID]
	delete(party.SOS, connID)

	closed := false
	if len(party.Members) == 0 {
		delete(m.parties, code)
		closed = true
		m.logger.Debug("Removed empty party", slog.String("partyCode", code))
	}

	m.logger.Debug("Member left party",
		slog.String("partyCode", code),
		slog.String("connID", connID.String()),
		slog.Bool("closed", closed),
	)
	return &state.LeaveResult{
		PartyCode:  code,
		Member:     member,
		Closed:     closed,
		SOSCleared: sosCleared,
	}
}

func (m *InMemoryManager) KickUser(requesterID, targetID uuid.UUID) (*state.LeaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	code, ok := m.memberParty[requesterID]
	if !ok {
		return nil, state.ErrNotInParty
	}
	party, ok := m.parties[code]
	if !ok {
		delete(m.memberParty, requesterID)
		return nil, state.ErrNotInParty
	}

	requester, ok := m.conns[requesterID]
	if !ok || requester.Name != party.Creator {
		return nil, state.ErrNotAuthorized
	}

	targetMemberID := targetID.String()
	found := false
	for _, member := range party.Members {
		if member.ID == targetMemberID {
			found = true
			break
		}
	}
	if !found {
		return nil, state.ErrMemberNotFound
	}

	m.logger.Debug("Member kicked",
		slog.String("partyCode", code),
		slog.String("requester", requester.Name),
		slog.String("targetConnID", targetMemberID),
	)
	return m.leaveLocked(targetID), nil
}

// --- Location ---

func (m *InMemoryManager) UpdateLocation(connID uuid.UUID, lat, lng float64) (*state.LocationUpdate, bool) {
	if !validCoordinates(lat, lng) {
		// Noisy GPS happens; drop without surfacing an error.
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		return nil, false
	}

	loc := state.Location{Latitude: lat, Longitude: lng}
	// Cached even without party membership so the reporter's own marker can
	// render before they join.
	m.locations[connID] = loc

	code, ok := m.memberParty[connID]
	if !ok {
		return nil, true
	}
	return &state.LocationUpdate{
		PartyCode: code,
		Member:    state.Member{ID: connID.String(), Username: conn.Name},
		Location:  loc,
	}, true
}

func (m *InMemoryManager) GetLocation(connID uuid.UUID) (state.Location, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locations[connID]
	return loc, ok
}

// --- SOS ---

func (m *InMemoryManager) RaiseSOS(connID uuid.UUID) (*state.SOSResult, error) {
	return m.setSOS(connID, true)
}

func (m *InMemoryManager) ClearSOS(connID uuid.UUID) (*state.SOSResult, error) {
	return m.setSOS(connID, false)
}

func (m *InMemoryManager) setSOS(connID uuid.UUID, active bool) (*state.SOSResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, party, err := m.partyForLocked(connID)
	if err != nil {
		return nil, err
	}

	if active {
		party.SOS[connID] = true
	} else {
		delete(party.SOS, connID)
	}

	m.logger.Info("SOS state changed",
		slog.String("partyCode", party.Code),
		slog.String("name", conn.Name),
		slog.Bool("active", active),
	)
	return &state.SOSResult{
		PartyCode: party.Code,
		Member:    state.Member{ID: connID.String(), Username: conn.Name},
		Active:    active,
	}, nil
}

// --- Waypoints ---

func (m *InMemoryManager) DropWaypoint(connID uuid.UUID, lat, lng float64, label string) (*state.WaypointResult, error) {
	if !validCoordinates(lat, lng) {
		return nil, state.ErrInvalidCoordinates
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, party, err := m.partyForLocked(connID)
	if err != nil {
		return nil, err
	}

	wp := state.Waypoint{
		ID:    uuid.New().String(),
		Lat:   lat,
		Lng:   lng,
		Label: label,
	}
	party.Waypoints = append(party.Waypoints, wp)

	m.logger.Debug("Waypoint dropped",
		slog.String("partyCode", party.Code),
		slog.String("waypointID", wp.ID),
	)
	return &state.WaypointResult{PartyCode: party.Code, Waypoint: wp}, nil
}

func (m *InMemoryManager) ClearWaypoints(connID uuid.UUID) (*state.WaypointResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, party, err := m.partyForLocked(connID)
	if err != nil {
		return nil, err
	}

	party.Waypoints = nil
	m.logger.Debug("Waypoints cleared", slog.String("partyCode", party.Code))
	return &state.WaypointResult{PartyCode: party.Code}, nil
}

// partyForLocked resolves the connection and its party, failing with
// ErrNotInParty when there is none. Caller holds m.mu.
func (m *InMemoryManager) partyForLocked(connID uuid.UUID) (*state.Connection, *state.Party, error) {
	conn, ok := m.conns[connID]
	if !ok {
		return nil, nil, state.ErrNotInParty
	}
	code, ok := m.memberParty[connID]
	if !ok {
		return nil, nil, state.ErrNotInParty
	}
	party, ok := m.parties[code]
	if !ok {
		delete(m.memberParty, connID)
		return nil, nil, state.ErrNotInParty
	}
	return conn, party, nil
}

// --- Read Helpers ---

func (m *InMemoryManager) FindParty(code string) (*state.Party, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	party, ok := m.parties[code]
	return party, ok
}

func (m *InMemoryManager) PartyOf(connID uuid.UUID) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	code, ok := m.memberParty[connID]
	return code, ok
}

func (m *InMemoryManager) PartyConnections(code string) []*transport.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	party, ok := m.parties[code]
	if !ok {
		return nil
	}
	conns := make([]*transport.Connection, 0, len(party.Members))
	for _, member := range party.Members {
		memberID, err := uuid.Parse(member.ID)
		if err != nil {
			continue
		}
		if conn, ok := m.conns[memberID]; ok {
			conns = append(conns, conn.Transport)
		}
	}
	return conns
}

func (m *InMemoryManager) AllConnections() []*state.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := make([]*state.Connection, 0, len(m.conns))
	for _, conn := range m.conns {
		conns = append(conns, conn)
	}
	return conns
}

// --- Per-IP accounting ---

func (m *InMemoryManager) GetIPConnectionCount(ip string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, conn := range m.conns {
		if conn.IPAddress == ip {
			count++
		}
	}
	return count
}

func (m *InMemoryManager) FindOldestIPConnection(ip string) (*state.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var oldest *state.Connection
	for _, conn := range m.conns {
		if conn.IPAddress != ip {
			continue
		}
		if oldest == nil || conn.CreatedAt.Before(oldest.CreatedAt) {
			oldest = conn
		}
	}
	return oldest, oldest != nil
}

// --- helpers ---

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return state.DefaultName
	}
	return name
}

func validCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func snapshotMembers(party *state.Party) []state.Member {
	return append([]state.Member(nil), party.Members...)
}
