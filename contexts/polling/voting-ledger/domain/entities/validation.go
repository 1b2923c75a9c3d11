package entities

import domainerrors "pollledger/contexts/polling/voting-ledger/domain/errors"

// ValidateNewPoll applies the creation policy in a fixed order: description,
// plausible end timestamp, end in the future, end after start.
func ValidateNewPoll(description string, pollStart uint64, pollEnd uint64, now uint64) error {
	if !ValidDescription(description) {
		return domainerrors.ErrInvalidDescription
	}
	if pollEnd < MinPlausibleUnixTimestamp {
		return domainerrors.ErrInvalidTimestamp
	}
	if pollEnd <= now {
		return domainerrors.ErrPollEndInPast
	}
	if pollEnd <= pollStart {
		return domainerrors.ErrInvalidWindow
	}
	return nil
}

// AdmitVote checks the poll window for a vote cast at now.
func AdmitVote(poll Poll, now uint64) error {
	switch poll.StateAt(now) {
	case PollStateCreated:
		return domainerrors.ErrPollNotStarted
	case PollStateClosed:
		return domainerrors.ErrPollEnded
	default:
		return nil
	}
}
