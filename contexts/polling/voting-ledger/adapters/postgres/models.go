package postgresadapter

import (
	"time"

	"pollledger/contexts/polling/voting-ledger/domain/entities"

	"gorm.io/datatypes"
)

type pollModel struct {
	Address         string    `gorm:"column:address;primaryKey;size:16"`
	PollID          string    `gorm:"column:poll_id;uniqueIndex;size:20"`
	Description     string    `gorm:"column:description;size:280"`
	PollStart       string    `gorm:"column:poll_start;size:20"`
	PollEnd         string    `gorm:"column:poll_end;size:20"`
	CandidateAmount int64     `gorm:"column:candidate_amount;not null;default:0"`
	CreatedAt       time.Time `gorm:"column:created_at"`
}

func (pollModel) TableName() string {
	return "voting_ledger_polls"
}

func pollModelFromEntity(poll entities.Poll) pollModel {
	return pollModel{
		Address:         poll.Key().String(),
		PollID:          formatPollID(poll.PollID),
		Description:     poll.Description,
		PollStart:       formatPollID(poll.PollStart),
		PollEnd:         formatPollID(poll.PollEnd),
		CandidateAmount: int64(poll.CandidateAmount),
	}
}

func (m pollModel) toEntity() (entities.Poll, error) {
	pollID, err := parsePollID(m.PollID)
	if err != nil {
		return entities.Poll{}, err
	}
	start, err := parsePollID(m.PollStart)
	if err != nil {
		return entities.Poll{}, err
	}
	end, err := parsePollID(m.PollEnd)
	if err != nil {
		return entities.Poll{}, err
	}
	return entities.Poll{
		PollID:          pollID,
		Description:     m.Description,
		PollStart:       start,
		PollEnd:         end,
		CandidateAmount: uint64(m.CandidateAmount),
	}, nil
}

type candidateModel struct {
	Address        string    `gorm:"column:address;primaryKey;size:80"`
	PollID         string    `gorm:"column:poll_id;index;size:20"`
	CandidateName  string    `gorm:"column:candidate_name;size:32"`
	CandidateVotes int64     `gorm:"column:candidate_votes;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (candidateModel) TableName() string {
	return "voting_ledger_candidates"
}

func candidateModelFromEntity(candidate entities.Candidate) candidateModel {
	return candidateModel{
		Address:        candidate.Key().String(),
		PollID:         formatPollID(candidate.PollID),
		CandidateName:  candidate.CandidateName,
		CandidateVotes: int64(candidate.CandidateVotes),
	}
}

func (m candidateModel) toEntity() (entities.Candidate, error) {
	pollID, err := parsePollID(m.PollID)
	if err != nil {
		return entities.Candidate{}, err
	}
	return entities.Candidate{
		PollID:         pollID,
		CandidateName:  m.CandidateName,
		CandidateVotes: uint64(m.CandidateVotes),
	}, nil
}

type idempotencyModel struct {
	Key           string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash   string    `gorm:"column:request_hash"`
	PollID        string    `gorm:"column:poll_id;size:20"`
	CandidateName string    `gorm:"column:candidate_name;size:32"`
	VoteCount     int64     `gorm:"column:vote_count"`
	ExpiresAt     time.Time `gorm:"column:expires_at;index"`
}

func (idempotencyModel) TableName() string {
	return "voting_ledger_idempotency"
}

type outboxModel struct {
	Sequence     int64          `gorm:"column:sequence;primaryKey;autoIncrement"`
	OutboxID     string         `gorm:"column:outbox_id;uniqueIndex"`
	EventType    string         `gorm:"column:event_type"`
	PartitionKey string         `gorm:"column:partition_key"`
	Payload      datatypes.JSON `gorm:"column:payload"`
	Status       string         `gorm:"column:status;index"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
	PublishedAt  *time.Time     `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "voting_ledger_outbox"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "voting_ledger_event_dedup"
}
