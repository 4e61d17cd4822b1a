package postgresadapter

import (
	"strings"

	domainerrors "psephos/contexts/governance/ballot-ledger/domain/errors"

	"gorm.io/gorm"
)

const ballotsTable = "ballots"

// RegisterGuards installs dialect-independent append-only enforcement as gorm
// callbacks. On postgres the triggers installed by Migrate are the primary
// guard; these callbacks give the same protection on any dialect (and so are
// exercised by the sqlite-backed tests).
func RegisterGuards(db *gorm.DB) error {
	if err := db.Callback().Delete().Before("gorm:delete").
		Register("ballot_ledger:reject_delete", rejectBallotDelete); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").
		Register("ballot_ledger:restrict_update", restrictBallotUpdate); err != nil {
		return err
	}
	if err := db.Callback().Raw().Before("gorm:raw").
		Register("ballot_ledger:reject_raw_mutation", rejectRawBallotMutation); err != nil {
		return err
	}
	return nil
}

func rejectBallotDelete(db *gorm.DB) {
	if targetsBallots(db) {
		_ = db.AddError(domainerrors.ErrAppendOnly)
	}
}

// restrictBallotUpdate allows only the two mutable columns. Struct-based
// updates are rejected outright because gorm would write every non-zero
// field.
func restrictBallotUpdate(db *gorm.DB) {
	if !targetsBallots(db) {
		return
	}
	assignments, ok := db.Statement.Dest.(map[string]any)
	if !ok {
		_ = db.AddError(domainerrors.ErrImmutableColumn)
		return
	}
	for column := range assignments {
		if column != "superseded_by_id" && column != "is_counted" {
			_ = db.AddError(domainerrors.ErrImmutableColumn)
			return
		}
	}
}

// rejectRawBallotMutation blocks raw DELETE/UPDATE/TRUNCATE statements naming
// the ballot table from going through this connection. DDL starts with
// CREATE/DROP, so Migrate is unaffected.
func rejectRawBallotMutation(db *gorm.DB) {
	sql := db.Statement.SQL.String()
	if !mentionsBallots(sql) {
		return
	}
	if hasMutationVerb(sql) {
		_ = db.AddError(domainerrors.ErrAppendOnly)
	}
}

func targetsBallots(db *gorm.DB) bool {
	if db.Statement.Table == ballotsTable {
		return true
	}
	return db.Statement.Schema != nil && db.Statement.Schema.Table == ballotsTable
}

func mentionsBallots(sql string) bool {
	lowered := strings.ToLower(sql)
	return strings.Contains(lowered, " "+ballotsTable) ||
		strings.Contains(lowered, `"`+ballotsTable+`"`)
}

func hasMutationVerb(sql string) bool {
	lowered := strings.ToLower(sql)
	return strings.HasPrefix(lowered, "delete") ||
		strings.HasPrefix(lowered, "update") ||
		strings.HasPrefix(lowered, "truncate")
}
