package coordinator

import "errors"

var ErrNoWorkerCores = errors.New("coordinator: at least one worker core is required")
