package dag

import "github.com/pkg/errors"

var (
	ErrEpochNumberMismatch = errors.New("epoch block number mismatch")
	// index corruption faults, abort the epoch being built
	ErrTipRefersNowhere     = errors.New("tip refers to an unknown node")
	ErrTipRefersToFinalised = errors.New("tip refers to a finalised node")
	ErrDanglingReference    = errors.New("reference resolves nowhere")

	ErrNotFound = errors.New("not found")
	ErrNotWork  = errors.New("node is not WORK")
)

// IsIndexCorruption tells faults of the local indices apart from plain rejections
func IsIndexCorruption(err error) bool {
	return errors.Is(err, ErrTipRefersNowhere) ||
		errors.Is(err, ErrTipRefersToFinalised) ||
		errors.Is(err, ErrDanglingReference)
}
