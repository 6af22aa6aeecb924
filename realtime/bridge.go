package realtime

import (
	"context"
	"errors"
	"time"

	"puzzle-bar/utils"

	"github.com/cenkalti/backoff/v4"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

const (
	CollectionOrders     = "orders"
	CollectionChallenges = "challenges"
	CollectionUsers      = "users"
)

// Mutation is a committed row change as reported by the store. Fields lists
// the columns whose value changed and is empty for inserts and deletes.
type Mutation struct {
	Collection string   `json:"collection"`
	Op         Op       `json:"op"`
	ID         string   `json:"id"`
	Fields     []string `json:"fields"`
}

func (m Mutation) Changed(field string) bool {
	for _, f := range m.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// Classify maps a mutation to the change events subscribers care about.
func Classify(m Mutation) []ChangeEvent {
	switch m.Collection {
	case CollectionOrders:
		return []ChangeEvent{OrderChanged{OrderID: m.ID, Op: m.Op}}
	case CollectionChallenges:
		events := []ChangeEvent{ChallengeChanged{ChallengeID: m.ID, Op: m.Op}}
		if m.Changed("participants_count") {
			events = append(events, ChallengeParticipantsChanged{ChallengeID: m.ID})
		}
		return events
	case CollectionUsers:
		if m.Changed("puzzles") {
			return []ChangeEvent{PuzzlesChanged{UserID: m.ID}}
		}
	}
	return nil
}

// Source delivers committed mutations until ctx ends or the underlying
// connection breaks. onConnect is called once the feed is live.
type Source interface {
	Listen(ctx context.Context, onConnect func(), fn func(Mutation)) error
}

type Publisher interface {
	Publish(ChangeEvent)
}

// Bridge keeps a Source connected and republishes its mutations as change
// events. After a reconnect it publishes Resync so subscribers refetch
// whatever they missed while it was down.
type Bridge struct {
	source     Source
	publisher  Publisher
	newBackOff func() backoff.BackOff
}

func NewBridge(source Source, publisher Publisher) *Bridge {
	return &Bridge{
		source:    source,
		publisher: publisher,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}
}

// Run blocks until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	bo := b.newBackOff()
	connectedBefore := false

	for {
		err := b.source.Listen(ctx,
			func() {
				bo.Reset()
				if connectedBefore {
					utils.LogInfo("[FEED] change feed reconnected, asking clients to resync")
					b.publisher.Publish(Resync{})
				} else {
					utils.LogInfo("[FEED] change feed connected")
				}
				connectedBefore = true
			},
			func(m Mutation) {
				for _, ev := range Classify(m) {
					b.publisher.Publish(ev)
				}
			},
		)

		if ctx.Err() != nil {
			return
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			wait = 30 * time.Second
		}
		if err == nil {
			err = errors.New("feed closed")
		}
		utils.LogWarn("[FEED] change feed lost: %v (retrying in %s)", err, wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
