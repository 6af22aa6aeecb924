// Package realtime turns committed row changes into typed change events and
// fans them out to connected stream clients.
package realtime

import (
	"encoding/json"
	"fmt"
)

type EventKind string

const (
	KindOrderChanged                 EventKind = "orderChanged"
	KindChallengeChanged             EventKind = "challengeChanged"
	KindChallengeParticipantsChanged EventKind = "challengeParticipantsChanged"
	KindPuzzlesChanged               EventKind = "puzzlesChanged"
	KindResync                       EventKind = "resync"
)

// ChangeEvent is one of OrderChanged, ChallengeChanged,
// ChallengeParticipantsChanged, PuzzlesChanged or Resync.
type ChangeEvent interface {
	Kind() EventKind
	changeEvent()
}

// OrderChanged is emitted for any order insert, update or delete. An empty
// OrderID asks subscribers to refetch all orders.
type OrderChanged struct {
	OrderID string `json:"order_id,omitempty"`
	Op      Op     `json:"op,omitempty"`
}

// ChallengeChanged is emitted for any challenge mutation, including score
// and completion updates of its participants.
type ChallengeChanged struct {
	ChallengeID string `json:"challenge_id,omitempty"`
	Op          Op     `json:"op,omitempty"`
}

type ChallengeParticipantsChanged struct {
	ChallengeID string `json:"challenge_id"`
}

type PuzzlesChanged struct {
	UserID string `json:"user_id"`
}

// Resync tells subscribers that changes may have been missed and every
// view should be refetched.
type Resync struct{}

func (OrderChanged) Kind() EventKind                 { return KindOrderChanged }
func (ChallengeChanged) Kind() EventKind             { return KindChallengeChanged }
func (ChallengeParticipantsChanged) Kind() EventKind { return KindChallengeParticipantsChanged }
func (PuzzlesChanged) Kind() EventKind               { return KindPuzzlesChanged }
func (Resync) Kind() EventKind                       { return KindResync }

func (OrderChanged) changeEvent()                 {}
func (ChallengeChanged) changeEvent()             {}
func (ChallengeParticipantsChanged) changeEvent() {}
func (PuzzlesChanged) changeEvent()               {}
func (Resync) changeEvent()                       {}

// Encode returns the stream event name and JSON payload for ev.
func Encode(ev ChangeEvent) (string, []byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", nil, err
	}
	return string(ev.Kind()), data, nil
}

// Decode is the inverse of Encode.
func Decode(name string, data []byte) (ChangeEvent, error) {
	if len(data) == 0 {
		data = []byte("{}")
	}
	switch EventKind(name) {
	case KindOrderChanged:
		var ev OrderChanged
		err := unmarshalInto(&ev, data)
		return ev, err
	case KindChallengeChanged:
		var ev ChallengeChanged
		err := unmarshalInto(&ev, data)
		return ev, err
	case KindChallengeParticipantsChanged:
		var ev ChallengeParticipantsChanged
		err := unmarshalInto(&ev, data)
		return ev, err
	case KindPuzzlesChanged:
		var ev PuzzlesChanged
		err := unmarshalInto(&ev, data)
		return ev, err
	case KindResync:
		return Resync{}, nil
	}
	return nil, fmt.Errorf("unknown change event %q", name)
}

func unmarshalInto(dst interface{}, data []byte) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode change event: %w", err)
	}
	return nil
}
