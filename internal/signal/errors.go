package signal

import "errors"

// ErrSyntax flags a malformed expression: an unexpected token, an unclosed
// paren, or a helper call with the wrong arity.
var ErrSyntax = errors.New("signal: syntax error")

// ErrUnboundIdentifier flags an identifier that is neither a known column
// nor a recognized helper — the preflight bind check spec.md §4.3 requires
// before any evaluation runs. Silent coercion to false is forbidden.
var ErrUnboundIdentifier = errors.New("signal: unbound identifier")

// ErrTypeMismatch flags a boolean expression used where a numeric series was
// expected, or vice versa (e.g. "close AND volume" without a comparison).
var ErrTypeMismatch = errors.New("signal: type mismatch")
