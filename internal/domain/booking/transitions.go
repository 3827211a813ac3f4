package booking

import (
	"time"

	"staybook/internal/domain/shared/daterange"
)

type gate int

const (
	gateNone gate = iota
	gateOnOrAfterCheckIn
	gateOnOrAfterCheckOut
	gateAfterGrace
)

type rule struct {
	actors   []ActorType
	releases bool
	gate     gate
}

type edge struct {
	from Status
	to   Status
}

// transitions is the complete lifecycle table. Admins may perform any edge.
var transitions = map[edge]rule{
	{StatusPending, StatusConfirmed}:    {actors: []ActorType{ActorHost}},
	{StatusPending, StatusRejected}:     {actors: []ActorType{ActorHost}, releases: true},
	{StatusPending, StatusCancelled}:    {actors: []ActorType{ActorGuest}, releases: true},
	{StatusConfirmed, StatusCancelled}:  {actors: []ActorType{ActorGuest, ActorHost}, releases: true},
	{StatusConfirmed, StatusCheckedIn}:  {actors: []ActorType{ActorHost, ActorSystem}, gate: gateOnOrAfterCheckIn},
	{StatusCheckedIn, StatusCheckedOut}: {actors: []ActorType{ActorHost, ActorSystem}, gate: gateOnOrAfterCheckOut},
	{StatusCheckedOut, StatusCompleted}: {actors: []ActorType{ActorSystem}, gate: gateAfterGrace},
}

// Rules are the time-dependent parameters of the lifecycle.
type Rules struct {
	CompletionGrace time.Duration
}

// Transition describes an accepted status change.
type Transition struct {
	From           Status
	To             Status
	Actor          Actor
	Reason         string
	ReleasesNights bool
	At             time.Time
}

// CanTransition reports whether the table has an edge from -> to for actor,
// ignoring date gates.
func CanTransition(from, to Status, actor ActorType) bool {
	r, ok := transitions[edge{from, to}]
	if !ok {
		return false
	}
	return r.allows(actor)
}

func (r rule) allows(actor ActorType) bool {
	if actor == ActorAdmin {
		return true
	}
	for _, a := range r.actors {
		if a == actor {
			return true
		}
	}
	return false
}

// Transition applies the requested status change. The caller must already
// have authorized actor against this booking.
func (b *Booking) Transition(actor Actor, to Status, reason string, now time.Time, rules Rules) (Transition, error) {
	from := b.Status
	reject := func(why string) (Transition, error) {
		return Transition{}, &TransitionError{From: from, To: to, Actor: actor.Type, Reason: why}
	}
	if b.IsDeleted() {
		return reject("booking deleted")
	}
	r, ok := transitions[edge{from, to}]
	if !ok {
		return reject("")
	}
	if !r.allows(actor.Type) {
		return reject("actor not allowed")
	}
	now = now.UTC()
	switch r.gate {
	case gateOnOrAfterCheckIn:
		if daterange.Day(now).Before(b.Range.CheckIn) {
			return reject("before check-in date")
		}
	case gateOnOrAfterCheckOut:
		if daterange.Day(now).Before(b.Range.CheckOut) {
			return reject("before check-out date")
		}
	case gateAfterGrace:
		if now.Before(b.CheckedOutAt.Add(rules.CompletionGrace)) {
			return reject("grace window still open")
		}
	}

	b.Status = to
	b.UpdatedAt = now
	if to == StatusCheckedOut {
		b.CheckedOutAt = now
	}
	b.Record(newLifecycleEvent(eventNameFor(to), b, actor, reason, now))
	return Transition{
		From:           from,
		To:             to,
		Actor:          actor,
		Reason:         reason,
		ReleasesNights: r.releases,
		At:             now,
	}, nil
}
