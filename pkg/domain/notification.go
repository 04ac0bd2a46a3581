package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ActionKind names the fact a notification reports to the catalog.
type ActionKind string

const (
	ActionPostModule    ActionKind = "PostModule"
	ActionPostBuildInfo ActionKind = "PostBuildInfo"
	ActionPromote       ActionKind = "Promote"
)

// ActionKinds lists every supported action in registration order.
var ActionKinds = []ActionKind{ActionPostModule, ActionPostBuildInfo, ActionPromote}

// ParseActionKind validates a serialized action name.
func ParseActionKind(raw string) (ActionKind, error) {
	for _, kind := range ActionKinds {
		if string(kind) == raw {
			return kind, nil
		}
	}
	return "", fmt.Errorf("domain: unknown notification action %q", raw)
}

// RequiresPayload reports whether the action needs a resolved artifact.
func (k ActionKind) RequiresPayload() bool {
	return k == ActionPostModule || k == ActionPostBuildInfo
}

// Ledger key suffixes.
const (
	SentSuffix    = "-sent"
	PendingSuffix = "-to-resend"
)

// ErrMalformedNotification flags a notification missing part of its identity.
var ErrMalformedNotification = errors.New("domain: malformed notification")

// Identity names a notification obligation: (module name, version, action).
type Identity struct {
	ModuleName    string
	ModuleVersion string
	Action        ActionKind
}

// Validate rejects identities with an empty field.
func (id Identity) Validate() error {
	var missing []string
	if strings.TrimSpace(id.ModuleName) == "" {
		missing = append(missing, "moduleName")
	}
	if strings.TrimSpace(id.ModuleVersion) == "" {
		missing = append(missing, "moduleVersion")
	}
	if strings.TrimSpace(string(id.Action)) == "" {
		missing = append(missing, "notificationAction")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMalformedNotification, strings.Join(missing, ", "))
	}
	return nil
}

func (id Identity) String() string {
	return fmt.Sprintf("%s-%s-%s", id.ModuleName, id.ModuleVersion, id.Action)
}

// SentKey is the ledger key of the sent marker.
func (id Identity) SentKey() string {
	return "." + id.String() + SentSuffix
}

// PendingKey is the ledger key of the pending resend record.
func (id Identity) PendingKey() string {
	return "." + id.String() + PendingSuffix
}

// Notification is an obligation to inform the catalog of one fact. It is never
// mutated once dispatch begins.
type Notification struct {
	Action         ActionKind
	ModuleName     string
	ModuleVersion  string
	PayloadLocator string
}

// Identity returns the notification identity key.
func (n Notification) Identity() Identity {
	return Identity{ModuleName: n.ModuleName, ModuleVersion: n.ModuleVersion, Action: n.Action}
}

// HasPayload reports whether a payload reference was captured.
func (n Notification) HasPayload() bool {
	return strings.TrimSpace(n.PayloadLocator) != ""
}

func (n Notification) String() string {
	return n.Identity().String()
}

type pendingRecord struct {
	MimePath           string `json:"mimePath,omitempty"`
	NotificationAction string `json:"notificationAction"`
	ModuleName         string `json:"moduleName"`
	ModuleVersion      string `json:"moduleVersion"`
}

// MarshalJSON renders the pending resend schema.
func (n Notification) MarshalJSON() ([]byte, error) {
	return json.Marshal(pendingRecord{
		MimePath:           n.PayloadLocator,
		NotificationAction: string(n.Action),
		ModuleName:         n.ModuleName,
		ModuleVersion:      n.ModuleVersion,
	})
}

// UnmarshalJSON decodes a pending resend record. mimePath is optional; every
// other field is required.
func (n *Notification) UnmarshalJSON(data []byte) error {
	var rec pendingRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	action, err := ParseActionKind(rec.NotificationAction)
	if err != nil {
		return err
	}
	decoded := Notification{
		Action:         action,
		ModuleName:     rec.ModuleName,
		ModuleVersion:  rec.ModuleVersion,
		PayloadLocator: rec.MimePath,
	}
	if err := decoded.Identity().Validate(); err != nil {
		return err
	}
	*n = decoded
	return nil
}

// Outcome is the result of one delivery attempt as seen by reconciliation.
type Outcome string

const (
	OutcomeDelivered Outcome = "Delivered"
	OutcomePostponed Outcome = "Postponed"
	OutcomeSkipped   Outcome = "Skipped"
)
