package errors

import "errors"

var (
	ErrInvalidVoteInput        = errors.New("invalid committee vote input")
	ErrInvalidVoteType         = errors.New("unknown committee vote type")
	ErrInvalidVoteTarget       = errors.New("vote target is not part of this conflict case")
	ErrConflictNotFound        = errors.New("conflict case not found")
	ErrTranslationNotFound     = errors.New("translation not found")
	ErrConflictAlreadyResolved = errors.New("conflict case is already resolved")
	ErrDuplicateVote           = errors.New("committee member already voted on this conflict")
	ErrResolutionConflict      = errors.New("conflict resolution lost to a concurrent vote")
)
