package forecast

import "errors"

var (
	// ErrInsufficientData marks a symbol with too little usable history to train on.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrTrainingFailed marks a model that failed to fit or produced non-finite output.
	ErrTrainingFailed = errors.New("training failed")
)
