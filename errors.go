package pilotlink

import "fmt"

// Kind classifies a ClientError by the failure category it represents,
// mirroring how the network manager decides whether a condition is
// recoverable.
type Kind int

const (
	// KindProtocolDecode: a malformed PDU line. Logged with the raw
	// line; the connection continues.
	KindProtocolDecode Kind = iota
	// KindAuthFailure: the JWT endpoint rejected the request, or the
	// server sent a fatal $ER. Surfaced to the user; the session ends.
	KindAuthFailure
	// KindTransportError: a socket read/write/connect failure.
	KindTransportError
	// KindKill: an explicit $!! from the server or a supervisor.
	KindKill
	// KindSimGone: the UDP heartbeat from the simulator lapsed past 15
	// seconds. Not fatal; the bridge reconciles by re-subscribing.
	KindSimGone
	// KindPluginIncompatible: the plugin's reported version is below
	// the compile-time floor.
	KindPluginIncompatible
	// KindCslInvalid: the plugin reports no usable CSL models.
	KindCslInvalid
	// KindConfigPrecondition: connect was attempted without the
	// credentials or device configuration it requires.
	KindConfigPrecondition
)

func (k Kind) String() string {
	switch k {
	case KindProtocolDecode:
		return "protocol_decode"
	case KindAuthFailure:
		return "auth_failure"
	case KindTransportError:
		return "transport_error"
	case KindKill:
		return "kill"
	case KindSimGone:
		return "sim_gone"
	case KindPluginIncompatible:
		return "plugin_incompatible"
	case KindCslInvalid:
		return "csl_invalid"
	case KindConfigPrecondition:
		return "config_precondition"
	default:
		return "unknown"
	}
}

// ClientError wraps an underlying cause with the Kind the network
// manager used to decide whether to keep the session alive.
type ClientError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *ClientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// Fatal reports whether this Kind, on its own, should end the session.
// Server $ER codes are not mapped onto a Kind; their fatality is decided
// by pdu.ProtocolError.Fatal.
func (k Kind) Fatal() bool {
	switch k {
	case KindAuthFailure, KindKill:
		return true
	default:
		return false
	}
}

func newClientError(kind Kind, message string, err error) *ClientError {
	return &ClientError{Kind: kind, Message: message, Err: err}
}
