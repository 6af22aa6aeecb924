package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"puzzle-bar/utils"

	"github.com/jackc/pgx/v5"
)

// PGSource reads mutations from a Postgres LISTEN channel fed by the
// triggers installed with InstallTriggers.
type PGSource struct {
	dsn     string
	channel string
}

func NewPGSource(dsn string) *PGSource {
	return &PGSource{dsn: dsn, channel: NotifyChannel}
}

func (s *PGSource) Listen(ctx context.Context, onConnect func(), fn func(Mutation)) error {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return fmt.Errorf("connect change feed: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{s.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", s.channel, err)
	}
	onConnect()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		var m Mutation
		if err := json.Unmarshal([]byte(n.Payload), &m); err != nil {
			utils.LogWarn("[FEED] ignoring malformed notification: %v", err)
			continue
		}
		fn(m)
	}
}
