package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
)

// DefaultCloseToken is the text message that requests finalize-and-close.
const DefaultCloseToken = "close()"

// Kind identifies the shape of an inbound unit
type Kind uint8

const (
	// KindBinary is an audio chunk
	KindBinary Kind = iota + 1
	// KindClose is the close token
	KindClose
	// KindUnknown is any other text or message type
	KindUnknown
	// KindError is a transport failure or peer close
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindBinary:
		return "binary"
	case KindClose:
		return "close"
	case KindUnknown:
		return "unknown"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Unit is one message received from a client
type Unit struct {
	Kind        Kind
	MessageType int    // websocket message type as read from the wire
	Data        []byte // payload for binary and unknown units
	Err         error  // set for KindError only
}

// Classify maps a websocket message to a Unit. Text must match closeToken
// exactly to be a close request.
func Classify(messageType int, data []byte, closeToken string) Unit {
	switch messageType {
	case websocket.BinaryMessage:
		return Unit{Kind: KindBinary, MessageType: messageType, Data: data}
	case websocket.TextMessage:
		if string(data) == closeToken {
			return Unit{Kind: KindClose, MessageType: messageType}
		}
	}
	return Unit{Kind: KindUnknown, MessageType: messageType, Data: data}
}

// TransportError wraps a read failure into a Unit
func TransportError(err error) Unit {
	return Unit{Kind: KindError, Err: err}
}

// IsEmpty reports whether a binary unit carries no payload
func (u Unit) IsEmpty() bool {
	return u.Kind == KindBinary && len(u.Data) == 0
}

// PeerClosed reports whether the unit is an orderly close initiated by the client
func (u Unit) PeerClosed() bool {
	return u.Kind == KindError && websocket.IsCloseError(u.Err,
		websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}

// ErrInvalidClientID is returned for identifiers that cannot name an artifact.
var ErrInvalidClientID = errors.New("invalid client id")

// ValidateClientID rejects identifiers that are empty, dot segments, or
// contain path separators or NUL bytes.
func ValidateClientID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidClientID)
	case id == "." || id == "..":
		return fmt.Errorf("%w: %q is a dot segment", ErrInvalidClientID, id)
	case strings.ContainsAny(id, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidClientID, id)
	}
	return nil
}
