package realtime

import (
	"fmt"

	"gorm.io/gorm"
)

// NotifyChannel is the Postgres channel mutations are published on.
const NotifyChannel = "record_changes"

const notifyFunction = `
CREATE OR REPLACE FUNCTION notify_record_change() RETURNS trigger AS $$
DECLARE
	changed text[] := '{}';
	rec_id text;
BEGIN
	IF TG_OP = 'UPDATE' THEN
		SELECT COALESCE(array_agg(n.key ORDER BY n.key), '{}') INTO changed
		FROM jsonb_each(to_jsonb(NEW)) AS n
		JOIN jsonb_each(to_jsonb(OLD)) AS o ON o.key = n.key
		WHERE n.value IS DISTINCT FROM o.value;
	END IF;

	IF TG_OP = 'DELETE' THEN
		rec_id := OLD.id::text;
	ELSE
		rec_id := NEW.id::text;
	END IF;

	PERFORM pg_notify('` + NotifyChannel + `', json_build_object(
		'collection', TG_TABLE_NAME,
		'op', lower(TG_OP),
		'id', rec_id,
		'fields', changed
	)::text);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;
`

// WatchedTables are the tables whose commits feed the change stream.
var WatchedTables = []string{CollectionOrders, CollectionChallenges, CollectionUsers}

// InstallTriggers creates the notify function and an AFTER trigger on every
// watched table. Notifications are delivered on commit only. It is a no-op
// for non-Postgres databases.
func InstallTriggers(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(notifyFunction).Error; err != nil {
			return fmt.Errorf("create notify function: %w", err)
		}
		for _, table := range WatchedTables {
			trigger := table + "_notify_change"
			if err := tx.Exec(fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", trigger, table)).Error; err != nil {
				return fmt.Errorf("drop trigger on %s: %w", table, err)
			}
			stmt := fmt.Sprintf(
				"CREATE TRIGGER %s AFTER INSERT OR UPDATE OR DELETE ON %s FOR EACH ROW EXECUTE FUNCTION notify_record_change()",
				trigger, table,
			)
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("create trigger on %s: %w", table, err)
			}
		}
		return nil
	})
}
