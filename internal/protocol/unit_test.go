package protocol

import (
	"errors"
	"io"
	"testing"

	"github.com/gorilla/websocket"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		messageType int
		data        []byte
		closeToken  string
		expected    Kind
	}{
		{"binary chunk", websocket.BinaryMessage, []byte{0x00, 0x01}, DefaultCloseToken, KindBinary},
		{"empty binary", websocket.BinaryMessage, nil, DefaultCloseToken, KindBinary},
		{"close token", websocket.TextMessage, []byte("close()"), DefaultCloseToken, KindClose},
		{"custom close token", websocket.TextMessage, []byte("bye"), "bye", KindClose},
		{"close token with whitespace", websocket.TextMessage, []byte("close() "), DefaultCloseToken, KindUnknown},
		{"other text", websocket.TextMessage, []byte("hello"), DefaultCloseToken, KindUnknown},
		{"empty text", websocket.TextMessage, []byte{}, DefaultCloseToken, KindUnknown},
		{"unexpected type", websocket.PingMessage, nil, DefaultCloseToken, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit := Classify(tt.messageType, tt.data, tt.closeToken)
			if unit.Kind != tt.expected {
				t.Errorf("Expected kind %v, got %v", tt.expected, unit.Kind)
			}
			if unit.MessageType != tt.messageType {
				t.Errorf("Expected message type %d, got %d", tt.messageType, unit.MessageType)
			}
		})
	}
}

func TestUnitIsEmpty(t *testing.T) {
	if !Classify(websocket.BinaryMessage, []byte{}, DefaultCloseToken).IsEmpty() {
		t.Error("Expected empty binary unit to report empty")
	}
	if Classify(websocket.BinaryMessage, []byte{1}, DefaultCloseToken).IsEmpty() {
		t.Error("Expected non-empty binary unit")
	}
	if Classify(websocket.TextMessage, []byte{}, DefaultCloseToken).IsEmpty() {
		t.Error("Only binary units can be empty")
	}
}

func TestUnitPeerClosed(t *testing.T) {
	normal := TransportError(&websocket.CloseError{Code: websocket.CloseNormalClosure})
	if !normal.PeerClosed() {
		t.Error("Expected normal close to be a peer close")
	}

	abnormal := TransportError(&websocket.CloseError{Code: websocket.CloseAbnormalClosure})
	if abnormal.PeerClosed() {
		t.Error("Expected abnormal close to be a transport error")
	}

	eof := TransportError(io.ErrUnexpectedEOF)
	if eof.PeerClosed() {
		t.Error("Expected EOF to be a transport error")
	}
	if !errors.Is(eof.Err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected wrapped error to be kept, got %v", eof.Err)
	}
}

func TestKindString(t *testing.T) {
	if KindClose.String() != "close" {
		t.Errorf("Expected close, got %s", KindClose.String())
	}
	if Kind(42).String() != "kind(42)" {
		t.Errorf("Expected kind(42), got %s", Kind(42).String())
	}
}

func TestValidateClientID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"abc", false},
		{"user-42_session.1", false},
		{"", true},
		{".", true},
		{"..", true},
		{"a/b", true},
		{`a\b`, true},
		{"a\x00b", true},
	}

	for _, tt := range tests {
		err := ValidateClientID(tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateClientID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidClientID) {
			t.Errorf("Expected ErrInvalidClientID for %q, got %v", tt.id, err)
		}
	}
}
