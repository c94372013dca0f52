package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/shopspring/decimal"
)

const (
	ErrorBadInput                 = "PAYLEDGER_BAD_INPUT"
	ErrorInvalidSignature         = "PAYLEDGER_INVALID_SIGNATURE"
	ErrorSignatureMismatch        = "PAYLEDGER_SIGNATURE_MISMATCH"
	ErrorMissingIdentityAssertion = "PAYLEDGER_MISSING_IDENTITY_ASSERTION"
	ErrorIdentityResolution       = "PAYLEDGER_IDENTITY_RESOLUTION_FAILED"
	ErrorConfigNotFound           = "PAYLEDGER_CONFIG_NOT_FOUND"
	ErrorMisconfiguredProduct     = "PAYLEDGER_PRODUCT_MISCONFIGURED"
	ErrorUnsupportedProduct       = "PAYLEDGER_UNSUPPORTED_PRODUCT"
	ErrorLedgerWriteFailed        = "PAYLEDGER_LEDGER_WRITE_FAILED"
	ErrorNotFound                 = "PAYLEDGER_NOT_FOUND"
	ErrorConflict                 = "PAYLEDGER_CONFLICT"
	ErrorInternal                 = "PAYLEDGER_INTERNAL_ERROR"
)

var (
	ErrInvalidSignature         = errors.New("payledger: invalid provider signature")
	ErrSignatureMismatch        = errors.New("payledger: provider signature mismatch")
	ErrMissingIdentityAssertion = errors.New("payledger: missing identity assertion")
	ErrIdentityResolution       = errors.New("payledger: identity resolution failed")
	ErrConfigNotFound           = errors.New("payledger: product configuration not found")
	ErrMisconfiguredProduct     = errors.New("payledger: product misconfiguration")
	ErrUnsupportedProduct       = errors.New("payledger: unsupported product type")
	ErrLedgerWrite              = errors.New("payledger: ledger write failed")
	ErrBalanceConflict          = errors.New("payledger: balance version conflict")
	ErrAccountNotFound          = errors.New("payledger: account not found")
	ErrFailureNotFound          = errors.New("payledger: credit failure not found")
)

// ServiceErrorer is implemented by typed errors that know their HTTP envelope.
type ServiceErrorer interface {
	ToServiceError() *goerrors.Error
}

// AuthenticationError covers every request rejected before identity is known:
// missing or invalid provider signatures and missing identity assertions.
type AuthenticationError struct {
	Kind    error
	Header  string
	Message string
	Cause   error
}

func (e *AuthenticationError) Error() string {
	if e == nil {
		return ErrInvalidSignature.Error()
	}
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return ErrInvalidSignature.Error()
}

func (e *AuthenticationError) Unwrap() error {
	if e == nil {
		return nil
	}
	kind := e.Kind
	if kind == nil {
		kind = ErrInvalidSignature
	}
	if e.Cause == nil {
		return kind
	}
	return errors.Join(kind, e.Cause)
}

func (e *AuthenticationError) ToServiceError() *goerrors.Error {
	textCode := ErrorInvalidSignature
	if e != nil {
		switch {
		case errors.Is(e.Kind, ErrSignatureMismatch):
			textCode = ErrorSignatureMismatch
		case errors.Is(e.Kind, ErrMissingIdentityAssertion):
			textCode = ErrorMissingIdentityAssertion
		}
	}
	err := goerrors.New(e.Error(), goerrors.CategoryAuth).
		WithCode(http.StatusBadRequest).
		WithTextCode(textCode)
	if e != nil && e.Header != "" {
		err = err.WithMetadata(map[string]any{"header": e.Header})
	}
	return err
}

func MissingSignatureHeader(header string) error {
	return &AuthenticationError{
		Kind:    ErrInvalidSignature,
		Header:  header,
		Message: fmt.Sprintf("missing provider signature header: add %s to the request headers", header),
	}
}

func MissingIdentityHeader(header string) error {
	return &AuthenticationError{
		Kind:    ErrMissingIdentityAssertion,
		Header:  header,
		Message: fmt.Sprintf("missing identity assertion header: add %s to the request headers", header),
	}
}

func SignatureMismatch(cause error) error {
	return &AuthenticationError{
		Kind:    ErrSignatureMismatch,
		Message: "provider signature verification failed",
		Cause:   cause,
	}
}

// ConfigNotFoundError deliberately carries both path components without saying
// which one missed.
type ConfigNotFoundError struct {
	MerchantID string
	ProductID  string
}

func (e *ConfigNotFoundError) Error() string {
	if e == nil {
		return ErrConfigNotFound.Error()
	}
	return fmt.Sprintf("product configuration not found: %s/%s", e.MerchantID, e.ProductID)
}

func (e *ConfigNotFoundError) Unwrap() error { return ErrConfigNotFound }

func (e *ConfigNotFoundError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorConfigNotFound)
}

type MisconfiguredProductError struct {
	MerchantID string
	ProductID  string
	Reason     string
}

func (e *MisconfiguredProductError) Error() string {
	if e == nil {
		return ErrMisconfiguredProduct.Error()
	}
	reason := strings.TrimSpace(e.Reason)
	if reason == "" {
		reason = "invalid definition"
	}
	return fmt.Sprintf("product misconfiguration: %s for product '%s'", reason, e.ProductID)
}

func (e *MisconfiguredProductError) Unwrap() error { return ErrMisconfiguredProduct }

func (e *MisconfiguredProductError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorMisconfiguredProduct)
}

type UnsupportedProductError struct {
	MerchantID string
	ProductID  string
	Type       ProductType
	Status     int
}

func (e *UnsupportedProductError) Error() string {
	if e == nil {
		return ErrUnsupportedProduct.Error()
	}
	return fmt.Sprintf("unsupported product type %q for %s/%s", e.Type, e.MerchantID, e.ProductID)
}

func (e *UnsupportedProductError) Unwrap() error { return ErrUnsupportedProduct }

func (e *UnsupportedProductError) ToServiceError() *goerrors.Error {
	status := http.StatusUnprocessableEntity
	if e != nil && e.Status >= 400 && e.Status <= 599 {
		status = e.Status
	}
	return goerrors.New(e.Error(), goerrors.CategoryOperation).
		WithCode(status).
		WithTextCode(ErrorUnsupportedProduct)
}

// IdentityResolutionError reports 400 when the assertion itself was rejected
// and 500 when resolution failed on our side.
type IdentityResolutionError struct {
	Status int
	Reason string
	Cause  error
}

func (e *IdentityResolutionError) Error() string {
	if e == nil {
		return ErrIdentityResolution.Error()
	}
	message := "identity resolution failed"
	if reason := strings.TrimSpace(e.Reason); reason != "" {
		message += ": " + reason
	}
	if e.Cause != nil {
		message += ": " + e.Cause.Error()
	}
	return message
}

func (e *IdentityResolutionError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return ErrIdentityResolution
	}
	return errors.Join(ErrIdentityResolution, e.Cause)
}

func (e *IdentityResolutionError) StatusCode() int {
	if e == nil || e.Status < 400 || e.Status > 599 {
		return http.StatusInternalServerError
	}
	return e.Status
}

func (e *IdentityResolutionError) ToServiceError() *goerrors.Error {
	status := e.StatusCode()
	category := goerrors.CategoryInternal
	if status < http.StatusInternalServerError {
		category = goerrors.CategoryAuth
	}
	return goerrors.New(e.Error(), category).
		WithCode(status).
		WithTextCode(ErrorIdentityResolution)
}

func IdentityRejected(reason string, cause error) error {
	return &IdentityResolutionError{Status: http.StatusBadRequest, Reason: reason, Cause: cause}
}

func IdentityUnavailable(reason string, cause error) error {
	return &IdentityResolutionError{Status: http.StatusInternalServerError, Reason: reason, Cause: cause}
}

type LedgerWriteError struct {
	EventID string
	UserID  string
	Amount  decimal.Decimal
	Cause   error
}

func (e *LedgerWriteError) Error() string {
	if e == nil {
		return ErrLedgerWrite.Error()
	}
	message := fmt.Sprintf("ledger write failed for event %s user %s amount %s", e.EventID, e.UserID, e.Amount.String())
	if e.Cause != nil {
		message += ": " + e.Cause.Error()
	}
	return message
}

func (e *LedgerWriteError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return ErrLedgerWrite
	}
	return errors.Join(ErrLedgerWrite, e.Cause)
}

func (e *LedgerWriteError) ToServiceError() *goerrors.Error {
	err := goerrors.New(e.Error(), goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorLedgerWriteFailed)
	if e != nil {
		err = err.WithMetadata(map[string]any{
			"event_id": e.EventID,
			"user_id":  e.UserID,
			"amount":   e.Amount.String(),
		})
	}
	return err
}

// MapError converts any error into a go-errors envelope with an HTTP code and
// text code set.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var typed ServiceErrorer
	if errors.As(err, &typed) {
		return ensureErrorEnvelope(typed.ToServiceError())
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrFailureNotFound):
		return newError(err.Error(), goerrors.CategoryNotFound, ErrorNotFound)
	case errors.Is(err, ErrBalanceConflict):
		return newError(err.Error(), goerrors.CategoryConflict, ErrorConflict)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	if strings.Contains(msg, "required") || strings.Contains(msg, "invalid") {
		return newError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func newError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorInvalidSignature
	case goerrors.CategoryConflict:
		return ErrorConflict
	default:
		return ErrorInternal
	}
}

func httpStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
