package cf

import (
	"errors"
	"fmt"
)

// ChallengeError is returned when a page fetch hit an anti-bot challenge
// instead of the requested content.
type ChallengeError struct {
	URL        string
	StatusCode int
	Provider   string
	Indicators []string
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("%s challenge: status=%d url=%s", e.Provider, e.StatusCode, e.URL)
}

// NewChallengeError builds a ChallengeError from detection output
func NewChallengeError(url string, info *Info) *ChallengeError {
	e := &ChallengeError{URL: url}
	if info != nil {
		e.StatusCode = info.StatusCode
		e.Provider = info.Provider
		e.Indicators = info.Indicators
	}
	return e
}

// IsChallenge reports whether err (or anything it wraps) is a ChallengeError
func IsChallenge(err error) (*ChallengeError, bool) {
	var cErr *ChallengeError
	if errors.As(err, &cErr) {
		return cErr, true
	}
	return nil, false
}
