package socket

import "fmt"

// CloseStatus is a symbolic close frame payload: a numeric status code from
// RFC 6455 section 7.4 plus a reason string. Codes line up with
// gobwas/ws.StatusCode so the engine can hand them to the wire unchanged.
type CloseStatus struct {
	Code   int
	Reason string
}

var (
	StatusNormalClosure   = CloseStatus{1000, "normal closure"}
	StatusGoingAway       = CloseStatus{1001, "going away"}
	StatusProtocolError   = CloseStatus{1002, "protocol error"}
	StatusUnsupportedData = CloseStatus{1003, "unsupported data"}
	StatusPolicyViolation = CloseStatus{1008, "policy violation"}
	StatusMessageTooBig   = CloseStatus{1009, "message too big"}
	StatusInternalError   = CloseStatus{1011, "internal error"}
	StatusServiceRestart  = CloseStatus{1012, "service restart"}
	StatusTryAgainLater   = CloseStatus{1013, "try again later"}
)

func (s CloseStatus) String() string {
	if s.Reason == "" {
		return fmt.Sprintf("%d", s.Code)
	}
	return fmt.Sprintf("%d %s", s.Code, s.Reason)
}

// WithReason returns a copy of the status with the reason replaced.
func (s CloseStatus) WithReason(reason string) CloseStatus {
	s.Reason = reason
	return s
}
