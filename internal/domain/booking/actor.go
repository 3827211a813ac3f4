package booking

import (
	"fmt"
	"strings"
)

type ActorType string

const (
	ActorGuest  ActorType = "guest"
	ActorHost   ActorType = "host"
	ActorSystem ActorType = "system"
	ActorAdmin  ActorType = "admin"
)

func ParseActorType(raw string) (ActorType, error) {
	switch ActorType(strings.ToLower(strings.TrimSpace(raw))) {
	case ActorGuest:
		return ActorGuest, nil
	case ActorHost:
		return ActorHost, nil
	case ActorSystem:
		return ActorSystem, nil
	case ActorAdmin:
		return ActorAdmin, nil
	}
	return "", fmt.Errorf("booking: unknown actor type %q", raw)
}

// Actor identifies who requests a change. System actors carry no id.
type Actor struct {
	Type ActorType `json:"type"`
	ID   string    `json:"id,omitempty"`
}

func Guest(id string) Actor { return Actor{Type: ActorGuest, ID: id} }
func Host(id string) Actor  { return Actor{Type: ActorHost, ID: id} }
func Admin(id string) Actor { return Actor{Type: ActorAdmin, ID: id} }
func System() Actor         { return Actor{Type: ActorSystem} }

func (a Actor) Validate() error {
	switch a.Type {
	case ActorSystem:
		return nil
	case ActorGuest, ActorHost, ActorAdmin:
		if strings.TrimSpace(a.ID) == "" {
			return &ValidationError{Field: "actor_id", Reason: "required"}
		}
		return nil
	}
	return &ValidationError{Field: "actor_type", Reason: "unknown"}
}

// Privileged actors may act on any booking.
func (a Actor) Privileged() bool {
	return a.Type == ActorSystem || a.Type == ActorAdmin
}
