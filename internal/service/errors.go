package service

import "errors"

// errCompensationSkipped aborts a compensating write whose target has moved on.
var errCompensationSkipped = errors.New("compensation skipped: donation changed concurrently")
