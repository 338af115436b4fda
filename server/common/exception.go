package common

import (
	"fmt"

	"github.com/juju/errors"
)

// ExceptionType 存储层错误分类
type ExceptionType int

const (
	ExceptionInvalid ExceptionType = iota
	ExceptionOutOfRange
	ExceptionConversion
	ExceptionUnknownType
	ExceptionDecimal
	ExceptionMismatchType
	ExceptionDivideByZero
	ExceptionIncompatibleType
	ExceptionOutOfMemory
	ExceptionNotImplemented
	ExceptionExecution
	ExceptionIO
)

// String 返回分类名称
func (t ExceptionType) String() string {
	switch t {
	case ExceptionInvalid:
		return "Invalid"
	case ExceptionOutOfRange:
		return "Out of Range"
	case ExceptionConversion:
		return "Conversion"
	case ExceptionUnknownType:
		return "Unknown Type"
	case ExceptionDecimal:
		return "Decimal"
	case ExceptionMismatchType:
		return "Mismatch Type"
	case ExceptionDivideByZero:
		return "Divide by Zero"
	case ExceptionIncompatibleType:
		return "Incompatible type"
	case ExceptionOutOfMemory:
		return "Out of Memory"
	case ExceptionNotImplemented:
		return "Not implemented"
	case ExceptionExecution:
		return "Execution"
	case ExceptionIO:
		return "IO Error"
	}
	return "Unknown"
}

// StorageError 带分类的存储层错误
type StorageError struct {
	Type    ExceptionType
	Message string
	Cause   error
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Exception Type: %s, Message: %s: %s", e.Type, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("Exception Type: %s, Message: %s", e.Type, e.Message)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewInvalidError 输入违反结构性前置条件
func NewInvalidError(message string) error {
	return &StorageError{Type: ExceptionInvalid, Message: message}
}

// NewIOError 底层文件系统IO失败或越界访问
func NewIOError(message string, cause error) error {
	return &StorageError{Type: ExceptionIO, Message: message, Cause: cause}
}

// NewExecutionError 内部契约被破坏
func NewExecutionError(message string) error {
	return &StorageError{Type: ExceptionExecution, Message: message}
}

// NewNotImplementedError 预留
func NewNotImplementedError(message string) error {
	return &StorageError{Type: ExceptionNotImplemented, Message: message}
}

// NewOutOfRangeError 预留
func NewOutOfRangeError(message string) error {
	return &StorageError{Type: ExceptionOutOfRange, Message: message}
}

// NewOutOfMemoryError 预留
func NewOutOfMemoryError(message string) error {
	return &StorageError{Type: ExceptionOutOfMemory, Message: message}
}

// IsExceptionType 判断错误是否属于给定分类，可透过juju/errors的包装
func IsExceptionType(err error, t ExceptionType) bool {
	err = errors.Cause(err)
	for err != nil {
		if se, ok := err.(*StorageError); ok {
			return se.Type == t
		}
		unwrapped, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapped.Unwrap()
	}
	return false
}
