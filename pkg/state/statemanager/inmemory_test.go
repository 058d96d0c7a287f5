package statemanager_test

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/SiddharthChaturvedii/Real-Time-Tracking-Safety-WebApp-LiveTrack/pkg/state"
	"github.com/SiddharthChaturvedii/Real-Time-Tracking-Safety-WebApp-LiveTrack/pkg/state/statemanager"
	"github.com/SiddharthChaturvedii/Real-Time-Tracking-Safety-WebApp-LiveTrack/pkg/transport"
	"github.com/google/uuid"
)

// --- Test Suite Setup ---

func newTestLogger() *slog.Logger {
	// Discard logger output during tests by setting a high level
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestManager() *statemanager.InMemoryManager {
	return statemanager.NewInMemoryManager(newTestLogger(), statemanager.Options{})
}

func newTransportConn() *transport.Connection {
	// The websocket conn is never touched as long as the pumps don't run.
	var wg sync.WaitGroup
	return transport.NewConnection(context.Background(), &wg, nil, transport.ConnectionConfig{}, newTestLogger())
}

// registers a connection and returns its id.
func register(t *testing.T, m *statemanager.InMemoryManager, ip string) uuid.UUID {
	t.Helper()
	conn := newTransportConn()
	if _, err := m.RegisterConnection(conn, ip); err != nil {
		t.Fatalf("RegisterConnection failed: %v", err)
	}
	return conn.ID()
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// --- Connection and User Registry Tests ---

func TestConnectionLifecycle(t *testing.T) {
	m := newTestManager()
	conn := newTransportConn()

	stateConn, err := m.RegisterConnection(conn, "127.0.0.1")
	if err != nil {
		t.Fatalf("RegisterConnection failed: %v", err)
	}
	if stateConn.ID != conn.ID() {
		t.Errorf("Registered connection ID mismatch")
	}
	if stateConn.Name != state.DefaultName {
		t.Errorf("Expected default name %q, got %q", state.DefaultName, stateConn.Name)
	}

	if _, err := m.RegisterConnection(conn, "127.0.0.1"); err == nil {
		t.Error("Expected error registering the same connection twice")
	}

	retrieved, found := m.GetConnection(conn.ID())
	if !found {
		t.Fatal("GetConnection failed to find registered connection")
	}
	if retrieved.ID != conn.ID() {
		t.Errorf("Retrieved connection ID mismatch")
	}

	m.Disconnect(conn.ID())
	if _, found := m.GetConnection(conn.ID()); found {
		t.Error("Found connection after disconnect")
	}
}

func TestRegisterUserIdempotent(t *testing.T) {
	m := newTestManager()
	connID := register(t, m, "1.1.1.1")

	m.RegisterUser(connID, "Alice")
	m.RegisterUser(connID, "Alicia")

	conn, _ := m.GetConnection(connID)
	if conn.Name != "Alicia" {
		t.Errorf("Expected latest name to win, got %q", conn.Name)
	}

	m.RegisterUser(connID, "")
	conn, _ = m.GetConnection(connID)
	if conn.Name != state.DefaultName {
		t.Errorf("Expected empty name to fall back to %q, got %q", state.DefaultName, conn.Name)
	}
}

// --- Party Lifecycle Tests ---

func TestCreateParty(t *testing.T) {
	m := newTestManager()
	connID := register(t, m, "1.1.1.1")

	result, err := m.CreateParty(connID, "Alice")
	if err != nil {
		t.Fatalf("CreateParty failed: %v", err)
	}

	if len(result.Members) != 1 {
		t.Fatalf("Expected exactly one member, got %d", len(result.Members))
	}
	if result.Creator != "Alice" {
		t.Errorf("Expected creator Alice, got %q", result.Creator)
	}
	if len(result.PartyCode) != 6 {
		t.Fatalf("Expected 6-character code, got %q", result.PartyCode)
	}
	for _, c := range result.PartyCode {
		if !strings.ContainsRune(codeAlphabet, c) {
			t.Errorf("Code %q contains character outside the uppercase alphanumeric alphabet", result.PartyCode)
		}
	}

	if code, ok := m.PartyOf(connID); !ok || code != result.PartyCode {
		t.Errorf("PartyOf mismatch: got %q, want %q", code, result.PartyCode)
	}
}

func TestJoinPartyNotFound(t *testing.T) {
	m := newTestManager()
	connID := register(t, m, "1.1.1.1")

	_, err := m.JoinParty(connID, "Bob", "NOPE00")
	if err != state.ErrPartyNotFound {
		t.Fatalf("Expected ErrPartyNotFound, got %v", err)
	}
	if _, ok := m.PartyOf(connID); ok {
		t.Error("Failed join must not leave the connection in a party")
	}
}

func TestJoinPartyNameConflict(t *testing.T) {
	m := newTestManager()
	alice := register(t, m, "1.1.1.1")
	bob := register(t, m, "2.2.2.2")

	created, _ := m.CreateParty(alice, "Alice")

	_, err := m.JoinParty(bob, "ALICE", created.PartyCode)
	if err != state.ErrNameTaken {
		t.Fatalf("Expected ErrNameTaken for case-insensitive duplicate, got %v", err)
	}

	party, ok := m.FindParty(created.PartyCode)
	if !ok {
		t.Fatal("Party disappeared after failed join")
	}
	if len(party.Members) != 1 {
		t.Errorf("Failed join mutated member list: %d members", len(party.Members))
	}
	if _, ok := m.PartyOf(bob); ok {
		t.Error("Failed join must not leave bob in a party")
	}
}

func TestLeavePartyNoop(t *testing.T) {
	m := newTestManager()
	connID := register(t, m, "1.1.1.1")

	if result := m.LeaveParty(connID); result != nil {
		t.Fatalf("Expected nil result for leave without a party, got %+v", result)
	}
	// leaving twice is just as harmless
	created, _ := m.CreateParty(connID, "Alice")
	if result := m.LeaveParty(connID); result == nil || result.PartyCode != created.PartyCode {
		t.Fatal("First leave should report the party")
	}
	if result := m.LeaveParty(connID); result != nil {
		t.Fatalf("Second leave should be a no-op, got %+v", result)
	}
}

func TestPartyClosesOnlyWhenEmpty(t *testing.T) {
	m := newTestManager()
	alice := register(t, m, "1.1.1.1")
	bob := register(t, m, "2.2.2.2")

	created, _ := m.CreateParty(alice, "Alice")
	if _, err := m.JoinParty(bob, "Bob", created.PartyCode); err != nil {
		t.Fatalf("JoinParty failed: %v", err)
	}

	result := m.LeaveParty(alice)
	if result.Closed {
		t.Error("Party with one remaining member must stay open")
	}
	if _, ok := m.FindParty(created.PartyCode); !ok {
		t.Fatal("Party removed while a member remains")
	}

	result = m.LeaveParty(bob)
	if !result.Closed {
		t.Error("Party must close when its last member leaves")
	}
	if _, ok := m.FindParty(created.PartyCode); ok {
		t.Error("Closed party still findable")
	}

	// and its code is no longer joinable
	late := register(t, m, "3.3.3.3")
	if _, err := m.JoinParty(late, "Carol", created.PartyCode); err != state.ErrPartyNotFound {
		t.Errorf("Expected ErrPartyNotFound on closed party, got %v", err)
	}
}

func TestAutoMigration(t *testing.T) {
	m := newTestManager()
	alice := register(t, m, "1.1.1.1")
	bob := register(t, m, "2.2.2.2")

	first, _ := m.CreateParty(alice, "Alice")
	if _, err := m.JoinParty(bob, "Bob", first.PartyCode); err != nil {
		t.Fatalf("JoinParty failed: %v", err)
	}

	// Creating a new party implicitly leaves the first one.
	second, err := m.CreateParty(alice, "Alice")
	if err != nil {
		t.Fatalf("CreateParty while in a party failed: %v", err)
	}
	if second.Departed == nil || second.Departed.PartyCode != first.PartyCode {
		t.Fatalf("Expected Departed to report %q, got %+v", first.PartyCode, second.Departed)
	}

	if code, _ := m.PartyOf(alice); code != second.PartyCode {
		t.Errorf("Alice should be in the new party, got %q", code)
	}
	firstParty, ok := m.FindParty(first.PartyCode)
	if !ok {
		t.Fatal("First party should survive with bob in it")
	}
	if len(firstParty.Members) != 1 || firstParty.Members[0].Username != "Bob" {
		t.Errorf("First party members wrong after migration: %+v", firstParty.Members)
	}
}

// a connection id maps to at most one party code after any operation sequence.
func TestSinglePartyMembershipInvariant(t *testing.T) {
	m := newTestManager()
	alice := register(t, m, "1.1.1.1")
	bob := register(t, m, "2.2.2.2")
	carol := register(t, m, "3.3.3.3")

	p1, _ := m.CreateParty(alice, "Alice")
	m.JoinParty(bob, "Bob", p1.PartyCode)
	p2, _ := m.CreateParty(carol, "Carol")
	m.JoinParty(bob, "Bob", p2.PartyCode) // migrates bob out of p1
	m.LeaveParty(carol)
	p3, _ := m.CreateParty(bob, "Bob") // migrates bob out of p2
	m.Disconnect(alice)

	codes := []string{p1.PartyCode, p2.PartyCode, p3.PartyCode}
	for _, id := range []uuid.UUID{alice, bob, carol} {
		appearances := 0
		for _, code := range codes {
			party, ok := m.FindParty(code)
			if !ok {
				continue
			}
			for _, member := range party.Members {
				if member.ID == id.String() {
					appearances++
				}
			}
		}
		if appearances > 1 {
			t.Errorf("Connection %s is a member of %d parties", id, appearances)
		}
		code, inParty := m.PartyOf(id)
		if inParty && appearances != 1 {
			t.Errorf("PartyOf says %s is in %q but membership count is %d", id, code, appearances)
		}
		if !inParty && appearances != 0 {
			t.Errorf("Connection %s has stale membership without an inverse index entry", id)
		}
	}
}

// --- Kick Tests ---

func TestKickAuthorization(t *testing.T) {
	m := newTestManager()
	alice := register(t, m, "1.1.1.1")
	bob := register(t, m, "2.2.2.2")
	carol := register(t, m, "3.3.3.3")

	created, _ := m.CreateParty(alice, "Alice")
	m.JoinParty(bob, "Bob", created.PartyCode)
	m.JoinParty(carol, "Carol", created.PartyCode)

	if _, err := m.KickUser(bob, carol); err != state.ErrNotAuthorized {
		t.Fatalf("Expected ErrNotAuthorized for non-creator kick, got %v", err)
	}
	if code, _ := m.PartyOf(carol); code != created.PartyCode {
		t.Error("Failed kick must not remove the target")
	}

	result, err := m.KickUser(alice, bob)
	if err != nil {
		t.Fatalf("Creator kick failed: %v", err)
	}
	if result.PartyCode != created.PartyCode || result.Member.Username != "Bob" {
		t.Errorf("Unexpected kick result: %+v", result)
	}
	if _, ok := m.PartyOf(bob); ok {
		t.Error("Kicked member still in a party")
	}
}

func TestKickErrors(t *testing.T) {
	m := newTestManager()
	alice := register(t, m, "1.1.1.1")
	bob := register(t, m, "2.2.2.2")

	if _, err := m.KickUser(alice, bob); err != state.ErrNotInParty {
		t.Fatalf("Expected ErrNotInParty, got %v", err)
	}

	m.CreateParty(alice, "Alice")
	if _, err := m.KickUser(alice, bob); err != state.ErrMemberNotFound {
		t.Fatalf("Expected ErrMemberNotFound for outsider target, got %v", err)
	}
}

// --- Location Tests ---

func TestLocationValidation(t *testing.T) {
	m := newTestManager()
	connID := register(t, m, "1.1.1.1")

	if _, ok := m.UpdateLocation(connID, 91, 0); ok {
		t.Error("Latitude 91 must be dropped")
	}
	if _, ok := m.UpdateLocation(connID, 0, -181); ok {
		t.Error("Longitude -181 must be dropped")
	}
	if _, ok := m.GetLocation(connID); ok {
		t.Error("Rejected report must not be cached")
	}

	// Valid report is cached even without party membership.
	update, ok := m.UpdateLocation(connID, 51.5, -0.1)
	if !ok {
		t.Fatal("Valid report rejected")
	}
	if update != nil {
		t.Error("Update should be nil without a party to broadcast to")
	}
	loc, ok := m.GetLocation(connID)
	if !ok || loc.Latitude != 51.5 || loc.Longitude != -0.1 {
		t.Errorf("Cached location wrong: %+v", loc)
	}
}

func TestLocationBroadcastAndJoinSnapshot(t *testing.T) {
	m := newTestManager()
	alice := register(t, m, "1.1.1.1")
	bob := register(t, m, "2.2.2.2")
	carol := register(t, m, "3.3.3.3")

	created, _ := m.CreateParty(alice, "Alice")
	m.JoinParty(bob, "Bob", created.PartyCode)

	update, ok := m.UpdateLocation(alice, 10, 20)
	if !ok || update == nil {
		t.Fatal("Expected broadcastable update for party member")
	}
	if update.PartyCode != created.PartyCode || update.Member.Username != "Alice" {
		t.Errorf("Unexpected update: %+v", update)
	}
	m.UpdateLocation(bob, 11, 21)

	// A late joiner gets one cached location per existing member.
	joined, err := m.JoinParty(carol, "Carol", created.PartyCode)
	if err != nil {
		t.Fatalf("JoinParty failed: %v", err)
	}
	if len(joined.Locations) != 2 {
		t.Fatalf("Expected 2 cached locations for late joiner, got %d", len(joined.Locations))
	}
}

func TestLocationClearedOnLeave(t *testing.T) {
	m := newTestManager()
	alice := register(t, m, "1.1.1.1")

	m.CreateParty(alice, "Alice")
	m.UpdateLocation(alice, 10, 20)

	m.LeaveParty(alice)
	if _, ok := m.GetLocation(alice); ok {
		t.Error("Location must be dropped when leaving the party")
	}
}

// --- SOS Tests ---

func TestSOSLifecycle(t *testing.T) {
	m := newTestManager()
	alice := register(t, m, "1.1.1.1")

	if _, err := m.RaiseSOS(alice); err != state.ErrNotInParty {
		t.Fatalf("Expected ErrNotInParty without a party, got %v", err)
	}

	created, _ := m.CreateParty(alice, "Alice")
	raised, err := m.RaiseSOS(alice)
	if err != nil {
		t.Fatalf("RaiseSOS failed: %v", err)
	}
	if !raised.Active || raised.PartyCode != created.PartyCode {
		t.Errorf("Unexpected SOS result: %+v", raised)
	}

	cleared, err := m.ClearSOS(alice)
	if err != nil {
		t.Fatalf("ClearSOS failed: %v", err)
	}
	if cleared.Active {
		t.Error("Cleared SOS still active")
	}
}

func TestSOSClearedOnDeparture(t *testing.T) {
	m := newTestManager()
	alice := register(t, m, "1.1.1.1")
	bob := register(t, m, "2.2.2.2")

	created, _ := m.CreateParty(alice, "Alice")
	m.JoinParty(bob, "Bob", created.PartyCode)

	m.RaiseSOS(bob)
	result := m.LeaveParty(bob)
	if !result.SOSCleared {
		t.Error("Leave must report the leaver's active SOS as cleared")
	}

	m.JoinParty(bob, "Bob", created.PartyCode)
	m.RaiseSOS(bob)
	result = m.Disconnect(bob)
	if result == nil || !result.SOSCleared {
		t.Error("Disconnect must clear SOS without an explicit clear event")
	}

	party, _ := m.FindParty(created.PartyCode)
	if len(party.SOS) != 0 {
		t.Errorf("Party still has %d SOS entries", len(party.SOS))
	}
}

func TestJoinSnapshotIncludesSOS(t *testing.T) {
	m := newTestManager()
	alice := register(t, m, "1.1.1.1")
	bob := register(t, m, "2.2.2.2")

	created, _ := m.CreateParty(alice, "Alice")
	m.RaiseSOS(alice)

	joined, err := m.JoinParty(bob, "Bob", created.PartyCode)
	if err != nil {
		t.Fatalf("JoinParty failed: %v", err)
	}
	if len(joined.ActiveSOS) != 1 || joined.ActiveSOS[0].Username != "Alice" {
		t.Errorf("Expected Alice's active SOS in join snapshot, got %+v", joined.ActiveSOS)
	}
}

// --- Waypoint Tests ---

func TestWaypoints(t *testing.T) {
	m := newTestManager()
	alice := register(t, m, "1.1.1.1")
	bob := register(t, m, "2.2.2.2")

	if _, err := m.DropWaypoint(alice, 10, 20, "meet here"); err != state.ErrNotInParty {
		t.Fatalf("Expected ErrNotInParty, got %v", err)
	}

	created, _ := m.CreateParty(alice, "Alice")
	if _, err := m.DropWaypoint(alice, 95, 20, "bad"); err != state.ErrInvalidCoordinates {
		t.Fatalf("Expected ErrInvalidCoordinates, got %v", err)
	}

	dropped, err := m.DropWaypoint(alice, 10, 20, "meet here")
	if err != nil {
		t.Fatalf("DropWaypoint failed: %v", err)
	}
	if dropped.Waypoint.ID == "" || dropped.Waypoint.Label != "meet here" {
		t.Errorf("Unexpected waypoint: %+v", dropped.Waypoint)
	}

	joined, _ := m.JoinParty(bob, "Bob", created.PartyCode)
	if len(joined.Waypoints) != 1 {
		t.Fatalf("Expected waypoint in join snapshot, got %d", len(joined.Waypoints))
	}

	if _, err := m.ClearWaypoints(bob); err != nil {
		t.Fatalf("ClearWaypoints failed: %v", err)
	}
	party, _ := m.FindParty(created.PartyCode)
	if len(party.Waypoints) != 0 {
		t.Errorf("Waypoints survived clearing: %d", len(party.Waypoints))
	}
}

// --- Concurrency Smoke Test ---

func TestConcurrentOperations(t *testing.T) {
	m := newTestManager()
	host := register(t, m, "0.0.0.0")
	created, _ := m.CreateParty(host, "Host")

	numGoroutines := 50
	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := newTransportConn()
			if _, err := m.RegisterConnection(conn, "10.0.0."+strconv.Itoa(i%8)); err != nil {
				return
			}
			connID := conn.ID()
			m.RegisterUser(connID, "user"+strconv.Itoa(i))
			m.JoinParty(connID, "user"+strconv.Itoa(i), created.PartyCode)
			m.UpdateLocation(connID, float64(i%90), float64(i%180))
			if i%2 == 0 {
				m.RaiseSOS(connID)
			}
			if i%3 == 0 {
				m.LeaveParty(connID)
			}
		}(i)
	}
	wg.Wait()

	party, ok := m.FindParty(created.PartyCode)
	if !ok {
		t.Fatal("Host's party vanished")
	}
	seen := make(map[string]bool)
	for _, member := range party.Members {
		if seen[member.ID] {
			t.Errorf("Duplicate member %s", member.ID)
		}
		seen[member.ID] = true
	}
}
