package resolve

import "errors"

// ErrResolvedInputs is returned when substituted inputs no longer decode
// into their action's payload
var ErrResolvedInputs = errors.New("resolved inputs do not fit action")
