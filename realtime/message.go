package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedMessage wraps inbound frames that are not valid JSON objects.
var ErrMalformedMessage = errors.New("malformed realtime message")

// Kind classifies inbound messages.
type Kind string

const (
	KindUnknown         Kind = ""
	KindForcedLogout    Kind = "force_logout"
	KindRefreshSessions Kind = "refresh_sessions"
	KindServiceUpdated  Kind = "service_updated"
)

// Message is the union of every inbound field. The kind is carried by either
// "action" or "type".
type Message struct {
	Action          string `json:"action,omitempty"`
	Type            string `json:"type,omitempty"`
	TargetSessionID string `json:"targetSessionId,omitempty"`
	Message         string `json:"message,omitempty"`
	Service         string `json:"service,omitempty"`
	Operation       string `json:"operation,omitempty"`
}

// ParseMessage decodes one frame.
func ParseMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return m, nil
}

// Kind returns the normalized message kind.
func (m Message) Kind() Kind {
	for _, raw := range []string{m.Action, m.Type} {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "force_logout", "forced_logout":
			return KindForcedLogout
		case "refresh_sessions":
			return KindRefreshSessions
		case "service_updated":
			return KindServiceUpdated
		}
	}
	return KindUnknown
}

func (m Message) rawKind() string {
	if m.Action != "" {
		return m.Action
	}
	return m.Type
}

// ForcedLogout is the transient signal pushed when a session is terminated
// elsewhere.
type ForcedLogout struct {
	TargetSessionID string
	Message         string
}

// AppliesTo reports whether the signal targets current. A signal without a
// target applies to any session; nothing applies when current is empty.
func (f ForcedLogout) AppliesTo(current string) bool {
	if current == "" {
		return false
	}
	return f.TargetSessionID == "" || f.TargetSessionID == current
}

// ForcedLogout extracts the forced-logout payload.
func (m Message) ForcedLogout() ForcedLogout {
	return ForcedLogout{TargetSessionID: m.TargetSessionID, Message: m.Message}
}

// ServiceUpdate is the payload of a service_updated push.
type ServiceUpdate struct {
	Service   string
	Operation string
	Message   string
}

// ServiceUpdate extracts the service_updated payload.
func (m Message) ServiceUpdate() ServiceUpdate {
	return ServiceUpdate{Service: m.Service, Operation: m.Operation, Message: m.Message}
}

// RegisterStyle selects the outbound registration message.
type RegisterStyle int

const (
	// RegisterTyped sends {"type":"register","sessionId":...}.
	RegisterTyped RegisterStyle = iota
	// RegisterIdentify sends {"action":"identify","sessionId":...,"timestamp":...}.
	RegisterIdentify
)

type registerMessage struct {
	Type      string `json:"type,omitempty"`
	Action    string `json:"action,omitempty"`
	SessionID string `json:"sessionId"`
	Timestamp string `json:"timestamp,omitempty"`
}

func newRegisterMessage(style RegisterStyle, sessionID string, now time.Time) registerMessage {
	if style == RegisterIdentify {
		return registerMessage{
			Action:    "identify",
			SessionID: sessionID,
			Timestamp: now.UTC().Format(time.RFC3339Nano),
		}
	}
	return registerMessage{Type: "register", SessionID: sessionID}
}
