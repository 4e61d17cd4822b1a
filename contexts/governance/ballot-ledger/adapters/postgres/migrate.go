package postgresadapter

import "gorm.io/gorm"

// Migrate creates the ballot table, the partial unique indexes and, on
// postgres, the triggers that make the append-only contract a property of
// the storage engine rather than of well-behaved callers.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&ballotModel{}); err != nil {
		return err
	}
	// Partial unique indexes: at most one final and at most one counted row
	// per (election, credential). Same syntax on postgres and sqlite.
	for _, stmt := range []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_ballots_final
			ON ballots (election_id, credential_public_id)
			WHERE superseded_by_id IS NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_ballots_counted
			ON ballots (election_id, credential_public_id)
			WHERE is_counted`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	for _, stmt := range ballotTriggerStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

var ballotTriggerStatements = []string{
	`CREATE OR REPLACE FUNCTION ballots_reject_delete() RETURNS trigger AS $$
	BEGIN
		RAISE EXCEPTION 'ballots are append-only; deletes are forbidden';
	END;
	$$ LANGUAGE plpgsql`,

	`DROP TRIGGER IF EXISTS trg_ballots_reject_delete ON ballots`,

	`CREATE TRIGGER trg_ballots_reject_delete
		BEFORE DELETE OR TRUNCATE ON ballots
		FOR EACH STATEMENT EXECUTE FUNCTION ballots_reject_delete()`,

	`CREATE OR REPLACE FUNCTION ballots_restrict_update() RETURNS trigger AS $$
	BEGIN
		IF NEW.id IS DISTINCT FROM OLD.id
			OR NEW.election_id IS DISTINCT FROM OLD.election_id
			OR NEW.credential_public_id IS DISTINCT FROM OLD.credential_public_id
			OR NEW.ranking IS DISTINCT FROM OLD.ranking
			OR NEW.weight IS DISTINCT FROM OLD.weight
			OR NEW.nonce IS DISTINCT FROM OLD.nonce
			OR NEW.content_hash IS DISTINCT FROM OLD.content_hash
			OR NEW.previous_chain_hash IS DISTINCT FROM OLD.previous_chain_hash
			OR NEW.chain_hash IS DISTINCT FROM OLD.chain_hash
			OR NEW.created_at IS DISTINCT FROM OLD.created_at
		THEN
			RAISE EXCEPTION 'only superseded_by_id and is_counted may change on ballots';
		END IF;
		-- A forward pointer is write-once. A provisional pointer (at an
		-- earlier row, written while the repository flips a resubmission)
		-- may only be cleared.
		IF OLD.superseded_by_id IS NOT NULL
			AND NEW.superseded_by_id IS DISTINCT FROM OLD.superseded_by_id
			AND NOT (NEW.superseded_by_id IS NULL AND OLD.superseded_by_id < OLD.id)
		THEN
			RAISE EXCEPTION 'supersession pointer is write-once';
		END IF;
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,

	`DROP TRIGGER IF EXISTS trg_ballots_restrict_update ON ballots`,

	`CREATE TRIGGER trg_ballots_restrict_update
		BEFORE UPDATE ON ballots
		FOR EACH ROW EXECUTE FUNCTION ballots_restrict_update()`,

	// Deferred so intra-transaction intermediate states (the provisional
	// pointer written while a resubmission flips) are tolerated. The row is
	// re-read by id at commit, so only the state being committed is judged,
	// not the transient value the triggering statement wrote.
	`CREATE OR REPLACE FUNCTION ballots_validate_supersession() RETURNS trigger AS $$
	DECLARE
		committed ballots%ROWTYPE;
		target ballots%ROWTYPE;
		cursor_id BIGINT;
		hops INT := 0;
	BEGIN
		SELECT * INTO committed FROM ballots WHERE id = NEW.id;
		IF NOT FOUND OR committed.superseded_by_id IS NULL THEN
			RETURN NEW;
		END IF;
		IF committed.superseded_by_id <= committed.id THEN
			RAISE EXCEPTION 'supersession pointer must reference a strictly later row';
		END IF;
		SELECT * INTO target FROM ballots WHERE id = committed.superseded_by_id;
		IF NOT FOUND THEN
			RAISE EXCEPTION 'supersession pointer references a missing row';
		END IF;
		IF target.election_id <> committed.election_id
			OR target.credential_public_id <> committed.credential_public_id
		THEN
			RAISE EXCEPTION 'supersession pointer must stay within the same election and credential';
		END IF;
		cursor_id := target.superseded_by_id;
		WHILE cursor_id IS NOT NULL LOOP
			IF cursor_id = committed.id THEN
				RAISE EXCEPTION 'supersession pointer forms a cycle';
			END IF;
			hops := hops + 1;
			IF hops > 10000 THEN
				RAISE EXCEPTION 'supersession chain too deep';
			END IF;
			SELECT superseded_by_id INTO cursor_id FROM ballots WHERE id = cursor_id;
		END LOOP;
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,

	`DROP TRIGGER IF EXISTS trg_ballots_validate_supersession ON ballots`,

	`CREATE CONSTRAINT TRIGGER trg_ballots_validate_supersession
		AFTER INSERT OR UPDATE OF superseded_by_id ON ballots
		DEFERRABLE INITIALLY DEFERRED
		FOR EACH ROW EXECUTE FUNCTION ballots_validate_supersession()`,
}
