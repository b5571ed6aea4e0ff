package replay

import "errors"

// ErrInvalidRange is returned when the replay window ends before it starts.
var ErrInvalidRange = errors.New("replay range ends before it starts")
