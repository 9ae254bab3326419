package attendance

import (
	"errors"

	"github.com/techvaseegrah/gymsaas-sub001/internal/roster"
)

var (
	ErrFighterNotFound     = roster.ErrFighterNotFound
	ErrSubscriptionExpired = errors.New("subscription expired")
	ErrTooSoon             = errors.New("punch too soon after previous face punch")
	ErrConcurrentPunch     = errors.New("concurrent punch in progress, try again")
	ErrNoOpenCheckIn       = errors.New("no open check-in to close")
	ErrRFIDMismatch        = errors.New("rfid does not belong to this fighter")
	ErrInvalidRange        = errors.New("start date is after end date")

	// ErrStale is returned by stores when the latest punch moved under a writer.
	ErrStale = errors.New("attendance state changed during write")
)
