package task

import "errors"

// ErrEncoding marks payloads that cannot be serialized or are not valid
// JSON; enqueue fails outright with it. A corrupt payload discovered at
// claim time is not fatal: the processor routes it through MarkFailed like
// any other handler failure.
var ErrEncoding = errors.New("payload encoding failed")

// ErrStore marks backend failures surfaced by the storage layer.
var ErrStore = errors.New("task store failure")
