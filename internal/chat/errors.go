package chat

import "errors"

// ErrLogout is returned by the router when the peer requested a graceful
// disconnect. The session treats it like a normal close: same cleanup path
// as an I/O error, executed exactly once.
var ErrLogout = errors.New("logout requested")
