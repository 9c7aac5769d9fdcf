package model

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON         = "INVALID_JSON"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeInsufficientStock   = "INSUFFICIENT_STOCK"
	ErrCodeInvalidDiscount     = "INVALID_DISCOUNT"
	ErrCodeOrderNotFound       = "ORDER_NOT_FOUND"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeDuplicatePayment    = "DUPLICATE_PAYMENT"
	ErrCodeInvalidSignature    = "INVALID_SIGNATURE"
	ErrCodeExternalService     = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTransactionConflict = "TRANSACTION_CONFLICT"
	ErrCodeCheckoutFailed      = "CHECKOUT_FAILED"
	ErrCodeUnpaidOrderExists   = "UNPAID_ORDER_EXISTS"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeUnauthorised        = "UNAUTHORIZED"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// DomainError is a business-rule violation with a machine-readable code.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrInsufficientStock   = NewDomainError(ErrCodeInsufficientStock, "Requested quantity exceeds available stock")
	ErrInvalidDiscount     = NewDomainError(ErrCodeInvalidDiscount, "Discount code is not valid for this order")
	ErrOrderNotFound       = NewDomainError(ErrCodeOrderNotFound, "Order not found")
	ErrInvalidTransition   = NewDomainError(ErrCodeInvalidTransition, "Order status transition not permitted")
	ErrDuplicatePayment    = NewDomainError(ErrCodeDuplicatePayment, "Payment is already recorded against another order")
	ErrInvalidSignature    = NewDomainError(ErrCodeInvalidSignature, "Webhook signature verification failed")
	ErrExternalService     = NewDomainError(ErrCodeExternalService, "External service unavailable")
	ErrTransactionConflict = NewDomainError(ErrCodeTransactionConflict, "Transaction aborted after repeated write conflicts")
	ErrCheckoutFailed      = NewDomainError(ErrCodeCheckoutFailed, "Unable to complete checkout")
	ErrUnpaidOrderExists   = NewDomainError(ErrCodeUnpaidOrderExists, "An unpaid order already exists for this user")
	ErrRateLimited         = NewDomainError(ErrCodeRateLimited, "Too many checkout attempts, try again later")
	ErrCancelWindowExpired = NewDomainError(ErrCodeValidation, "Orders can only be cancelled within 30 minutes of creation")
)
