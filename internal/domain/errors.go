package domain

import "errors"

// Kind groups errors by how callers must react to them.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindQuota      Kind = "quota"
	KindChallenge  Kind = "challenge"
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindUnresolved Kind = "unresolved"
	KindTransient  Kind = "transient"
	KindInternal   Kind = "internal"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrQuotaExceeded      = &Error{Kind: KindQuota, Code: "QUOTA_EXCEEDED", Message: "booking limit reached for this email address"}
	ErrChallengeNotFound  = &Error{Kind: KindChallenge, Code: "OTP_NOT_FOUND", Message: "no verification code was requested for this email"}
	ErrChallengeExpired   = &Error{Kind: KindChallenge, Code: "OTP_EXPIRED", Message: "verification code has expired"}
	ErrChallengeMismatch  = &Error{Kind: KindChallenge, Code: "OTP_MISMATCH", Message: "verification code does not match"}
	ErrDateConflict       = &Error{Kind: KindConflict, Code: "DATE_CONFLICT", Message: "selected dates are no longer available"}
	ErrRoomUnavailable    = &Error{Kind: KindConflict, Code: "ROOM_UNAVAILABLE", Message: "this room is not available for booking"}
	ErrDeliveryFailed     = &Error{Kind: KindTransient, Code: "DELIVERY_FAILED", Message: "could not send the verification code, please retry"}
	ErrInvalidSignature   = &Error{Kind: KindAuth, Code: "INVALID_SIGNATURE", Message: "invalid or missing webhook signature"}
	ErrUnresolvedPayment  = &Error{Kind: KindUnresolved, Code: "UNRESOLVED", Message: "payment could not be matched to a booking"}
	ErrBookingNotFound    = &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: "booking not found"}
	ErrInvalidTransition  = &Error{Kind: KindConflict, Code: "INVALID_TRANSITION", Message: "booking status change not allowed"}
	ErrPaymentUnavailable = &Error{Kind: KindConflict, Code: "PAYMENT_NOT_ALLOWED", Message: "booking is not awaiting payment"}
)

func Validation(msg string) error {
	return &Error{Kind: KindValidation, Code: "INVALID_INPUT", Message: msg}
}

// Transient marks infrastructure failures the caller may retry.
func Transient(msg string, err error) error {
	return &Error{Kind: KindTransient, Code: "UNAVAILABLE", Message: msg, Err: err}
}

func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// CodeOf returns the machine readable code of the outermost domain error.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "INTERNAL_ERROR"
}
