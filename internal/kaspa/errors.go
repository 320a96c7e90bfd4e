package kaspa

import "errors"

// ErrTooManyFractionalDigits is returned by KASToSompi when asked to convert
// more than 8 fractional decimal digits.
var ErrTooManyFractionalDigits = errors.New("kas amount has more than 8 fractional digits")
