package postgresadapter

import (
	"encoding/json"
	"time"

	"psephos/contexts/governance/lifecycle/domain/entities"
)

type electionModel struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name          string    `gorm:"column:name;not null"`
	Description   string    `gorm:"column:description"`
	URL           string    `gorm:"column:url"`
	Start         time.Time `gorm:"column:start_at;not null"`
	End           time.Time `gorm:"column:end_at;not null;index"`
	Seats         int64     `gorm:"column:seats;not null"`
	QuorumPercent int64     `gorm:"column:quorum_percent;not null"`
	EligibleGroup string    `gorm:"column:eligible_group"`
	Status        string    `gorm:"column:status;not null;index"`
	EmailSubject  string    `gorm:"column:email_subject"`
	EmailHTML     string    `gorm:"column:email_html"`
	EmailText     string    `gorm:"column:email_text"`
	TallyResult   []byte    `gorm:"column:tally_result;type:jsonb"`
	BallotsRef    string    `gorm:"column:ballots_ref"`
	AuditLogRef   string    `gorm:"column:audit_log_ref"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null"`
}

func (electionModel) TableName() string {
	return "elections"
}

func electionModelFromEntity(election entities.Election) electionModel {
	return electionModel{
		ID:            election.ID,
		Name:          election.Name,
		Description:   election.Description,
		URL:           election.URL,
		Start:         election.Start.UTC(),
		End:           election.End.UTC(),
		Seats:         election.Seats,
		QuorumPercent: election.QuorumPercent,
		EligibleGroup: election.EligibleGroup,
		Status:        string(election.Status),
		EmailSubject:  election.Email.Subject,
		EmailHTML:     election.Email.HTMLBody,
		EmailText:     election.Email.TextBody,
		TallyResult:   []byte(election.TallyResult),
		BallotsRef:    election.BallotsRef,
		AuditLogRef:   election.AuditLogRef,
		CreatedAt:     election.CreatedAt.UTC(),
		UpdatedAt:     election.UpdatedAt.UTC(),
	}
}

func (m electionModel) toEntity() entities.Election {
	return entities.Election{
		ID:            m.ID,
		Name:          m.Name,
		Description:   m.Description,
		URL:           m.URL,
		Start:         m.Start,
		End:           m.End,
		Seats:         m.Seats,
		QuorumPercent: m.QuorumPercent,
		EligibleGroup: m.EligibleGroup,
		Status:        entities.Status(m.Status),
		Email: entities.EmailSnapshot{
			Subject:  m.EmailSubject,
			HTMLBody: m.EmailHTML,
			TextBody: m.EmailText,
		},
		TallyResult: json.RawMessage(m.TallyResult),
		BallotsRef:  m.BallotsRef,
		AuditLogRef: m.AuditLogRef,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

type candidateModel struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ElectionID   int64  `gorm:"column:election_id;not null;index"`
	Name         string `gorm:"column:name;not null"`
	VoterRef     string `gorm:"column:voter_ref"`
	NominatorRef string `gorm:"column:nominator_ref"`
	Description  string `gorm:"column:description"`
	URL          string `gorm:"column:url"`
	TiebreakID   string `gorm:"column:tiebreak_id;not null"`
}

func (candidateModel) TableName() string {
	return "election_candidates"
}

func candidateModelFromEntity(candidate entities.Candidate) candidateModel {
	return candidateModel{
		ID:           candidate.ID,
		ElectionID:   candidate.ElectionID,
		Name:         candidate.Name,
		VoterRef:     candidate.VoterRef,
		NominatorRef: candidate.NominatorRef,
		Description:  candidate.Description,
		URL:          candidate.URL,
		TiebreakID:   candidate.TiebreakID,
	}
}

func (m candidateModel) toEntity() entities.Candidate {
	return entities.Candidate{
		ID:           m.ID,
		ElectionID:   m.ElectionID,
		Name:         m.Name,
		VoterRef:     m.VoterRef,
		NominatorRef: m.NominatorRef,
		Description:  m.Description,
		URL:          m.URL,
		TiebreakID:   m.TiebreakID,
	}
}

type exclusionGroupModel struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ElectionID   int64  `gorm:"column:election_id;not null;index"`
	Name         string `gorm:"column:name;not null"`
	MaxElected   int64  `gorm:"column:max_elected;not null"`
	CandidateIDs string `gorm:"column:candidate_ids;not null"`
}

func (exclusionGroupModel) TableName() string {
	return "election_exclusion_groups"
}

func exclusionGroupModelFromEntity(group entities.ExclusionGroup) (exclusionGroupModel, error) {
	encoded, err := json.Marshal(group.CandidateIDs)
	if err != nil {
		return exclusionGroupModel{}, err
	}
	return exclusionGroupModel{
		ID:           group.ID,
		ElectionID:   group.ElectionID,
		Name:         group.Name,
		MaxElected:   group.MaxElected,
		CandidateIDs: string(encoded),
	}, nil
}

func (m exclusionGroupModel) toEntity() (entities.ExclusionGroup, error) {
	var ids []int64
	if err := json.Unmarshal([]byte(m.CandidateIDs), &ids); err != nil {
		return entities.ExclusionGroup{}, err
	}
	return entities.ExclusionGroup{
		ID:           m.ID,
		ElectionID:   m.ElectionID,
		Name:         m.Name,
		MaxElected:   m.MaxElected,
		CandidateIDs: ids,
	}, nil
}
