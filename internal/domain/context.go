package domain

import (
	"fmt"
	"strings"
)

// WalkState tracks whether the user is currently on a walk.
type WalkState int

const (
	WalkIdle WalkState = iota
	WalkActive
	WalkPaused
)

// String returns a human-readable walk state.
func (w WalkState) String() string {
	switch w {
	case WalkActive:
		return "walking"
	case WalkPaused:
		return "paused"
	default:
		return "idle"
	}
}

// TrustedContact is someone the user has chosen to be reachable during a
// walk (emergency alerts, check-in notifications).
type TrustedContact struct {
	ID    string
	Name  string
	Phone string
	// Primary contacts are alerted first.
	Primary bool
}

// Context is the accumulated situational data for the active session.
// It is a value object: Merge returns a new Context, nothing mutates one
// in place. Read by the prompt builder and the safety scheduler; never
// touched by recognition or queue logic.
type Context struct {
	Location     string
	Destination  string
	RouteSummary string
	// SafetyScore is 0..100 for the current route; 0 means unknown.
	SafetyScore int
	// DangerZones names the flagged areas the route passes through.
	DangerZones []string
	Walk        WalkState
	Contacts    []TrustedContact
}

// ContextPatch is a partial Context update. Nil fields are left
// unchanged; non-nil fields replace the previous value wholesale
// (shallow merge).
type ContextPatch struct {
	Location     *string
	Destination  *string
	RouteSummary *string
	SafetyScore  *int
	DangerZones  *[]string
	Walk         *WalkState
	Contacts     *[]TrustedContact
}

// Merge applies a patch and returns the resulting Context.
func (c Context) Merge(p ContextPatch) Context {
	if p.Location != nil {
		c.Location = *p.Location
	}
	if p.Destination != nil {
		c.Destination = *p.Destination
	}
	if p.RouteSummary != nil {
		c.RouteSummary = *p.RouteSummary
	}
	if p.SafetyScore != nil {
		c.SafetyScore = *p.SafetyScore
	}
	if p.DangerZones != nil {
		c.DangerZones = append([]string(nil), (*p.DangerZones)...)
	}
	if p.Walk != nil {
		c.Walk = *p.Walk
	}
	if p.Contacts != nil {
		c.Contacts = append([]TrustedContact(nil), (*p.Contacts)...)
	}
	return c
}

// LowSafety reports whether the current route warrants a cautionary
// check-in instead of a generic one.
func (c Context) LowSafety() bool {
	return (c.SafetyScore > 0 && c.SafetyScore < 60) || len(c.DangerZones) > 0
}

// ContactSummary returns a short spoken-friendly description of the
// trusted contacts, or "" when none are set.
func (c Context) ContactSummary() string {
	if len(c.Contacts) == 0 {
		return ""
	}
	names := make([]string, 0, len(c.Contacts))
	for _, tc := range c.Contacts {
		n := tc.Name
		if tc.Primary {
			n += " (primary)"
		}
		names = append(names, n)
	}
	return fmt.Sprintf("%d trusted contact(s): %s", len(names), strings.Join(names, ", "))
}
