package repo

import "errors"

// ErrDuplicate — событие с таким идентификатором уже записано.
var ErrDuplicate = errors.New("duplicate event")
