package capture

import (
	"github.com/pkg/errors"
)

// Fatal precondition violations: these indicate data corruption or a
// protocol mismatch between client and service, not recoverable business
// logic. ProcessEvent returns them and the caller must stop the stream.
var (
	ErrEventNotSet          = errors.New("capture event with no kind set")
	ErrCallstackNotInterned = errors.New("callstack id was never interned")
	ErrStringNotInterned    = errors.New("string key was never interned")
	ErrUnknownThreadState   = errors.New("unknown thread state")
	ErrNoCommandBuffer      = errors.New("gpu submission carries markers but no command buffer")
	ErrListenerNil          = errors.New("capture listener is nil")
)
