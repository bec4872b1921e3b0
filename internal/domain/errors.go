package domain

import "errors"

var (
	// ErrSessionNotFound is returned for an unknown session ID or join code.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionFinished is returned when joining or acting on a finished session.
	ErrSessionFinished = errors.New("session already finished")
	// ErrSessionNotActive is returned when the runner for a session is not running.
	ErrSessionNotActive = errors.New("session not active")
	// ErrStatusConflict is returned when a conditional status transition finds
	// the session in a different state than expected (a concurrent writer won).
	ErrStatusConflict = errors.New("session status changed concurrently")
	// ErrPlayerNotFound is returned when a player acts before joining.
	ErrPlayerNotFound = errors.New("player not found in session")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidQuestion indicates question content without exactly one correct option.
	ErrInvalidQuestion = errors.New("question must have exactly one correct option")
	// ErrPowerupUsed is returned on a second 50/50 request in the same session.
	ErrPowerupUsed = errors.New("power-up already used")
	// ErrPowerupUnavailable is returned when the 50/50 cannot be served right now.
	ErrPowerupUnavailable = errors.New("power-up unavailable")
)
