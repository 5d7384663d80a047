package core

import (
	"errors"
	"testing"
)

func TestSwitchSingleRoomLeavesOthers(t *testing.T) {
	reg := NewRegistry()
	m := NewMembership()

	alice := NewClient("a", "alice")
	reg.Register(alice)

	if _, err := m.Switch(alice, "general", false, reg); err != nil {
		t.Fatalf("switch to general: %v", err)
	}
	left, err := m.Switch(alice, "random", false, reg)
	if err != nil {
		t.Fatalf("switch to random: %v", err)
	}
	if !equalStrings(left, []string{"general"}) {
		t.Fatalf("expected to leave [general], got %v", left)
	}
	if got := m.RoomsOf("a"); !equalStrings(got, []string{"random"}) {
		t.Fatalf("expected rooms [random], got %v", got)
	}
}

func TestSwitchMultiRoomKeepsExisting(t *testing.T) {
	reg := NewRegistry()
	m := NewMembership()

	alice := NewClient("a", "alice")
	reg.Register(alice)

	if _, err := m.Switch(alice, "general", true, reg); err != nil {
		t.Fatalf("switch to general: %v", err)
	}
	left, err := m.Switch(alice, "random", true, reg)
	if err != nil {
		t.Fatalf("switch to random: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected to leave nothing, got %v", left)
	}
	if got := m.RoomsOf("a"); !equalStrings(got, []string{"general", "random"}) {
		t.Fatalf("expected rooms [general random], got %v", got)
	}
}

func TestSwitchRejectsEvictedConnection(t *testing.T) {
	reg := NewRegistry()
	m := NewMembership()

	old := NewClient("conn-1", "alice")
	reg.Register(old)
	reg.Register(NewClient("conn-2", "alice"))

	if _, err := m.Switch(old, "general", false, reg); !errors.Is(err, ErrConnectionGone) {
		t.Fatalf("expected ErrConnectionGone, got %v", err)
	}
	if got := m.CountIn("general"); got != 0 {
		t.Fatalf("evicted connection must not join, got %d members", got)
	}
}

func TestRestoreRollsBackSwitch(t *testing.T) {
	reg := NewRegistry()
	m := NewMembership()

	alice := NewClient("a", "alice")
	reg.Register(alice)

	if _, err := m.Switch(alice, "general", false, reg); err != nil {
		t.Fatalf("switch to general: %v", err)
	}
	left, err := m.Switch(alice, "random", false, reg)
	if err != nil {
		t.Fatalf("switch to random: %v", err)
	}

	m.Restore(alice, "random", left)

	if got := m.RoomsOf("a"); !equalStrings(got, []string{"general"}) {
		t.Fatalf("expected rooms [general] after restore, got %v", got)
	}
	if got := m.CountIn("random"); got != 0 {
		t.Fatalf("random must be empty after restore, got %d", got)
	}
}

func TestLeaveAllReturnsAffectedRooms(t *testing.T) {
	reg := NewRegistry()
	m := NewMembership()

	alice := NewClient("a", "alice")
	reg.Register(alice)
	if _, err := m.Switch(alice, "general", true, reg); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if _, err := m.Switch(alice, "random", true, reg); err != nil {
		t.Fatalf("switch: %v", err)
	}

	rooms := m.LeaveAll("a")
	if !equalStrings(rooms, []string{"general", "random"}) {
		t.Fatalf("expected [general random], got %v", rooms)
	}
	if got := m.RoomsOf("a"); len(got) != 0 {
		t.Fatalf("expected no rooms after leave all, got %v", got)
	}
	if rooms := m.LeaveAll("a"); len(rooms) != 0 {
		t.Fatalf("second leave all must be empty, got %v", rooms)
	}
}

func TestOnlineUsersInFiltersStaleConnections(t *testing.T) {
	reg := NewRegistry()
	m := NewMembership()

	old := NewClient("conn-1", "alice")
	reg.Register(old)
	if _, err := m.Switch(old, "general", false, reg); err != nil {
		t.Fatalf("switch: %v", err)
	}

	bob := NewClient("b", "bob")
	reg.Register(bob)
	if _, err := m.Switch(bob, "general", false, reg); err != nil {
		t.Fatalf("switch: %v", err)
	}

	// Takeover: conn-1 is still in the member set but no longer registered.
	reg.Register(NewClient("conn-2", "alice"))

	if got := m.OnlineUsersIn("general", reg); !equalStrings(got, []string{"bob"}) {
		t.Fatalf("expected [bob], got %v", got)
	}
}
