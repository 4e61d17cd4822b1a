package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	lifecycleentities "psephos/contexts/governance/lifecycle/domain/entities"
	lifecycleports "psephos/contexts/governance/lifecycle/ports"
)

// The voter roll and the voting-email template belong to the membership
// system, not to this core. These adapters read both from operator-supplied
// configuration; a deployment embedding the core as a library wires its own.

// rollFileEntry is one line of the exported roll file.
type rollFileEntry struct {
	VoterRef string   `json:"voter_ref"`
	Email    string   `json:"email"`
	Weight   int64    `json:"weight"`
	Groups   []string `json:"groups,omitempty"`
}

// fileRollProvider reads the eligible-voter roll from a JSON export and
// filters it by the election's eligible-group restriction.
type fileRollProvider struct {
	path string
}

func (p fileRollProvider) EligibleRoll(_ context.Context, _ int64, eligibleGroup string) ([]lifecycleports.RollEntry, error) {
	if p.path == "" {
		return nil, errors.New("PSEPHOS_ROLL_FILE is required to start an election")
	}
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("read roll file: %w", err)
	}
	var entries []rollFileEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode roll file: %w", err)
	}

	out := make([]lifecycleports.RollEntry, 0, len(entries))
	for _, entry := range entries {
		if eligibleGroup != "" && !containsGroup(entry.Groups, eligibleGroup) {
			continue
		}
		out = append(out, lifecycleports.RollEntry{
			VoterRef: entry.VoterRef,
			Email:    entry.Email,
			Weight:   entry.Weight,
		})
	}
	return out, nil
}

func containsGroup(groups []string, want string) bool {
	for _, group := range groups {
		if group == want {
			return true
		}
	}
	return false
}

// staticTemplates serves the voting-email template from process config. The
// start path snapshots it into the election, so edits require a restart but
// never touch open elections.
type staticTemplates struct {
	snapshot lifecycleentities.EmailSnapshot
}

func (t staticTemplates) VotingEmail(context.Context) (lifecycleentities.EmailSnapshot, error) {
	return t.snapshot, nil
}
