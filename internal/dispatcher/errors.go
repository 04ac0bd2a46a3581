package dispatcher

import (
	"errors"
	"fmt"
)

// Kind classifies a failed delivery.
type Kind string

const (
	KindServerUnavailable    Kind = "ServerUnavailable"
	KindCommunicationFailure Kind = "CommunicationFailure"
)

// Coarse codes carried by DeliveryError.
const (
	CodeServerUnavailable    = 503
	CodeCommunicationFailure = 500
)

var (
	ErrServerUnavailable    = errors.New("dispatcher: catalog server unavailable")
	ErrCommunicationFailure = errors.New("dispatcher: catalog communication failure")
)

// DeliveryError is returned when a notification could not be delivered and
// was postponed. errors.Is matches both the kind sentinel and the cause.
type DeliveryError struct {
	Kind         Kind
	Code         int
	Notification string
	Cause        error
}

func (e *DeliveryError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("dispatcher: %s %s (%d)", e.Notification, e.Kind, e.Code)
	}
	return fmt.Sprintf("dispatcher: %s %s (%d): %v", e.Notification, e.Kind, e.Code, e.Cause)
}

func (e *DeliveryError) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func (e *DeliveryError) sentinel() error {
	if e.Kind == KindServerUnavailable {
		return ErrServerUnavailable
	}
	return ErrCommunicationFailure
}

func unavailable(notification string) *DeliveryError {
	return &DeliveryError{Kind: KindServerUnavailable, Code: CodeServerUnavailable, Notification: notification}
}

func communicationFailure(notification string, cause error) *DeliveryError {
	return &DeliveryError{Kind: KindCommunicationFailure, Code: CodeCommunicationFailure, Notification: notification, Cause: cause}
}

// AsDeliveryError extracts a DeliveryError from err.
func AsDeliveryError(err error) (*DeliveryError, bool) {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
