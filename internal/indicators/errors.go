package indicators

import "errors"

// ErrParameterInvalid flags a degenerate indicator configuration: a moving
// average length exceeding the candle count, a non-positive period, or an
// unrecognized kind (spec.md §7 category 4).
var ErrParameterInvalid = errors.New("indicators: invalid parameter")
