package usrp

import "errors"

// ErrMalformedHeader reports a datagram that is too short for the fixed
// header or does not open with the USRP magic. Non-protocol traffic hitting
// the ingress port surfaces as this error.
var ErrMalformedHeader = errors.New("usrp: malformed header")

// ErrTruncatedPayload reports a datagram whose header declares more payload
// bytes than the datagram carries.
var ErrTruncatedPayload = errors.New("usrp: truncated payload")
