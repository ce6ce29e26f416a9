package errors

import (
	stderrors "errors"
	"fmt"
)

// BotError представляет ошибку бота с кодом и контекстом
type BotError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
	Context interface{} `json:"context,omitempty"`
}

// Error реализует интерфейс error
func (e *BotError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap позволяет использовать errors.Is и errors.As
func (e *BotError) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по коду, чтобы копии из WithError/WithContext
// совпадали с предопределенными значениями
func (e *BotError) Is(target error) bool {
	t, ok := target.(*BotError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithContext добавляет контекст к ошибке
func (e *BotError) WithContext(ctx interface{}) *BotError {
	return &BotError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Context: ctx,
	}
}

// WithError добавляет underlying ошибку
func (e *BotError) WithError(err error) *BotError {
	return &BotError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
		Context: e.Context,
	}
}

// Предопределенные ошибки
var (
	// Ошибки пользователя
	ErrUserNotFound = &BotError{
		Code:    "USER_NOT_FOUND",
		Message: "user not found",
	}

	ErrIdentifierRequired = &BotError{
		Code:    "IDENTIFIER_REQUIRED",
		Message: "identifier required",
	}

	// Ошибки валидации
	ErrInvalidTime = &BotError{
		Code:    "INVALID_TIME",
		Message: "invalid notification time, expected HH:MM",
	}

	ErrInvalidThreshold = &BotError{
		Code:    "INVALID_THRESHOLD",
		Message: "invalid threshold",
	}

	// Системные ошибки
	ErrConfigurationInvalid = &BotError{
		Code:    "CONFIGURATION_INVALID",
		Message: "invalid configuration",
	}

	ErrFetchFailed = &BotError{
		Code:    "FETCH_FAILED",
		Message: "failed to fetch balance",
	}

	ErrSendFailed = &BotError{
		Code:    "SEND_FAILED",
		Message: "failed to send message",
	}

	ErrSchedulerStopped = &BotError{
		Code:    "SCHEDULER_STOPPED",
		Message: "scheduler is stopped",
	}
)

// NewBotError создает новую ошибку бота
func NewBotError(code, message string) *BotError {
	return &BotError{
		Code:    code,
		Message: message,
	}
}

// Wrap оборачивает обычную ошибку в BotError
func Wrap(err error, code, message string) *BotError {
	return &BotError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// GetBotError извлекает BotError из цепочки ошибок
func GetBotError(err error) (*BotError, bool) {
	var botErr *BotError
	if stderrors.As(err, &botErr) {
		return botErr, true
	}
	return nil, false
}

// Code возвращает код ошибки или "UNKNOWN" для сторонних ошибок
func Code(err error) string {
	if botErr, ok := GetBotError(err); ok {
		return botErr.Code
	}
	return "UNKNOWN"
}
