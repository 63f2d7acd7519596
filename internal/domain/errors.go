package domain

import "errors"

// Domain errors
var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidScore           = errors.New("invalid score value")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrStorageUnavailable     = errors.New("storage unavailable")
	ErrSubmissionInFlight     = errors.New("a submission is already in progress for this player")
	ErrLeaderboardUnavailable = errors.New("global leaderboard not configured")
	ErrInternalError          = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrLeaderboardUnavailable)
}

// IsClientError reports whether err was caused by the caller's input
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrInvalidScore)
}
