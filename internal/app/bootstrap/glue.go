package bootstrap

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	artifactsapp "psephos/contexts/governance/artifacts/application"
	auditentities "psephos/contexts/governance/audit-log/domain/entities"
	auditports "psephos/contexts/governance/audit-log/ports"
	ledgerqueries "psephos/contexts/governance/ballot-ledger/application/queries"
	ledgerports "psephos/contexts/governance/ballot-ledger/ports"
	"psephos/contexts/governance/credentials"
	credcommands "psephos/contexts/governance/credentials/application/commands"
	credports "psephos/contexts/governance/credentials/ports"
	lifecycleports "psephos/contexts/governance/lifecycle/ports"
	"psephos/contexts/governance/meek-tally/domain/meek"
	"psephos/contexts/governance/notifications"
	notifentities "psephos/contexts/governance/notifications/domain/entities"
)

// The cross-module adapters live here so each module's ports stay free of
// sibling imports. The composition root is the only place that knows all
// sides.

// SystemClock satisfies every module's Clock port.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// credentialResolver gives the ledger its read-model view of credentials.
type credentialResolver struct {
	repo credports.CredentialRepository
}

func (r credentialResolver) Resolve(ctx context.Context, electionID int64, publicID string) (ledgerports.Credential, bool, error) {
	credential, found, err := r.repo.GetByPublicID(ctx, electionID, publicID)
	if err != nil || !found {
		return ledgerports.Credential{}, false, err
	}
	return ledgerports.Credential{
		ElectionID: credential.ElectionID,
		PublicID:   credential.PublicID,
		Weight:     credential.Weight,
		Anonymized: credential.Anonymized(),
	}, true, nil
}

func (r credentialResolver) TotalWeight(ctx context.Context, electionID int64) (int64, error) {
	return r.repo.TotalWeight(ctx, electionID)
}

// electionGate gives the ledger its view of elections.
type electionGate struct {
	repo lifecycleports.ElectionRepository
}

func (g electionGate) VotingContext(ctx context.Context, electionID int64) (ledgerports.ElectionInfo, error) {
	election, err := g.repo.Get(ctx, electionID)
	if err != nil {
		return ledgerports.ElectionInfo{}, err
	}
	candidates, err := g.repo.ListCandidates(ctx, electionID)
	if err != nil {
		return ledgerports.ElectionInfo{}, err
	}
	info := ledgerports.ElectionInfo{
		ID:            election.ID,
		Status:        string(election.Status),
		Start:         election.Start,
		End:           election.End,
		QuorumPercent: election.QuorumPercent,
		CandidateIDs:  make([]int64, 0, len(candidates)),
	}
	for _, candidate := range candidates {
		info.CandidateIDs = append(info.CandidateIDs, candidate.ID)
	}
	return info, nil
}

func (g electionGate) VerifiableElectionIDs(ctx context.Context) ([]int64, error) {
	return g.repo.ListActiveIDs(ctx)
}

// credentialIssuer adapts the credentials module for lifecycle.
type credentialIssuer struct {
	module credentials.Module
}

func (i credentialIssuer) IssueRoll(ctx context.Context, electionID int64, roll []lifecycleports.RollEntry) ([]lifecycleports.IssuedCredential, error) {
	mapped := make([]credcommands.RollEntry, 0, len(roll))
	for _, entry := range roll {
		mapped = append(mapped, credcommands.RollEntry{VoterRef: entry.VoterRef, Weight: entry.Weight})
	}
	issued, err := i.module.Issue.IssueRoll(ctx, electionID, mapped)
	if err != nil {
		return nil, err
	}
	out := make([]lifecycleports.IssuedCredential, 0, len(issued))
	for _, credential := range issued {
		voterRef := ""
		if credential.VoterRef != nil {
			voterRef = *credential.VoterRef
		}
		out = append(out, lifecycleports.IssuedCredential{
			PublicID: credential.PublicID,
			VoterRef: voterRef,
			Weight:   credential.Weight,
		})
	}
	return out, nil
}

func (i credentialIssuer) AnonymizeElection(ctx context.Context, electionID int64) (int64, error) {
	return i.module.Anonymize.AnonymizeElection(ctx, electionID)
}

// credentialNotifier adapts the notifications module for lifecycle. Subject
// and bodies come pre-rendered from the election's frozen snapshot with the
// per-voter placeholders substituted here.
type credentialNotifier struct {
	module notifications.Module
}

func (n credentialNotifier) EnqueueCredentialMail(ctx context.Context, notice lifecycleports.CredentialNotice) error {
	replacer := strings.NewReplacer(
		"{{credential}}", notice.PublicID,
		"{{election}}", notice.ElectionName,
		"{{weight}}", strconv.FormatInt(notice.Weight, 10),
	)
	contextJSON, err := json.Marshal(map[string]any{
		"election_name": notice.ElectionName,
		"public_id":     notice.PublicID,
		"weight":        notice.Weight,
	})
	if err != nil {
		return err
	}
	_, err = n.module.Queue.Enqueue(ctx, notifentities.Message{
		ElectionID: notice.ElectionID,
		Template:   notifentities.TemplateVotingCredential,
		Recipient:  notice.Recipient,
		Subject:    replacer.Replace(notice.Email.Subject),
		HTMLBody:   replacer.Replace(notice.Email.HTMLBody),
		TextBody:   replacer.Replace(notice.Email.TextBody),
		Context:    contextJSON,
	})
	return err
}

func (n credentialNotifier) ScrubElection(ctx context.Context, electionID int64) (int64, error) {
	return n.module.Queue.ScrubElection(ctx, electionID)
}

// ballotSource feeds the lifecycle tally from the ledger, already shaped for
// the engine.
type ballotSource struct {
	repo ledgerports.BallotRepository
}

func (s ballotSource) CountedBallots(ctx context.Context, electionID int64) ([]meek.Ballot, error) {
	counted, err := s.repo.CountedBallots(ctx, electionID)
	if err != nil {
		return nil, err
	}
	out := make([]meek.Ballot, 0, len(counted))
	for _, ballot := range counted {
		out = append(out, meek.Ballot{Weight: ballot.Weight, Ranking: ballot.Ranking})
	}
	return out, nil
}

func (s ballotSource) CountedWeight(ctx context.Context, electionID int64) (int64, error) {
	return s.repo.CountedWeight(ctx, electionID)
}

func (s ballotSource) ChainSummary(ctx context.Context, electionID int64) (lifecycleports.ChainSummary, error) {
	summary, err := ledgerqueries.ExportUseCase{Ballots: s.repo}.BuildChainSummary(ctx, electionID)
	if err != nil {
		return lifecycleports.ChainSummary{}, err
	}
	return lifecycleports.ChainSummary{Chains: summary.Chains, HeadsDigest: summary.HeadsDigest}, nil
}

// artifactPublisher adapts the artifacts publisher for lifecycle.
type artifactPublisher struct {
	publisher artifactsapp.Publisher
}

func (p artifactPublisher) Publish(ctx context.Context, electionID int64) (string, string, error) {
	refs, err := p.publisher.Publish(ctx, electionID)
	if err != nil {
		return "", "", err
	}
	return refs.BallotsRef, refs.AuditLogRef, nil
}

// auditExportEntry is the published shape of one public audit entry.
type auditExportEntry struct {
	ID         string          `json:"id"`
	ElectionID int64           `json:"election_id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
}

// buildAuditExport renders the public audit log as canonical JSON.
func buildAuditExport(reader auditports.Reader) func(ctx context.Context, electionID int64) ([]byte, error) {
	return func(ctx context.Context, electionID int64) ([]byte, error) {
		entries, err := reader.ListPublic(ctx, electionID)
		if err != nil {
			return nil, err
		}
		out := make([]auditExportEntry, 0, len(entries))
		for _, entry := range entries {
			out = append(out, exportEntry(entry))
		}
		return json.MarshalIndent(struct {
			ElectionID int64              `json:"election_id"`
			Entries    []auditExportEntry `json:"entries"`
		}{ElectionID: electionID, Entries: out}, "", "  ")
	}
}

func exportEntry(entry auditentities.Entry) auditExportEntry {
	return auditExportEntry{
		ID:         entry.ID,
		ElectionID: entry.ElectionID,
		EventType:  entry.EventType,
		Payload:    entry.Payload,
		Timestamp:  entry.Timestamp,
	}
}
