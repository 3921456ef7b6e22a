package lock

import "errors"

// ErrLockTimeout is returned when a lock cannot be acquired before the
// context deadline.
var ErrLockTimeout = errors.New("lock acquisition timeout")
