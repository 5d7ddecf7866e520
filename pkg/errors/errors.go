package errors

import (
	"fmt"
	"strings"
)

func (d Definition) Error() string {
	return d.Message
}

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
}

// 通用错误。
var (
	InvalidRequest  = Definition{Code: "INVALID_REQUEST", Message: "Invalid request"}
	Unauthorized    = Definition{Code: "UNAUTHORIZED", Message: "Unauthorized"}
	InvalidUserID   = Definition{Code: "INVALID_USER_ID", Message: "Invalid user ID format"}
	UserNotFound    = Definition{Code: "USER_NOT_FOUND", Message: "User not found"}
	TooManyRequests = Definition{Code: "TOO_MANY_REQUESTS", Message: "Too many requests, please slow down"}
)

// 任务生命周期错误。
var (
	InvalidStateTransition = Definition{Code: "INVALID_STATE_TRANSITION", Message: "Invalid quest state transition"}
	ValidationFailed       = Definition{Code: "VALIDATION_FAILED", Message: "Submitted values failed validation"}
	QuestNotFound          = Definition{Code: "QUEST_NOT_FOUND", Message: "Quest not found"}
	DetailNotFound         = Definition{Code: "DETAIL_NOT_FOUND", Message: "Quest detail not found"}
	TemplateNotFound       = Definition{Code: "TEMPLATE_NOT_FOUND", Message: "Quest template not found"}
)

// 并发与配置错误。
var (
	ConcurrencyConflict = Definition{Code: "CONCURRENCY_CONFLICT", Message: "Concurrent update conflict, please retry"}
	ConfigurationError  = Definition{Code: "CONFIGURATION_ERROR", Message: "Quest periodicity configuration invalid"}
)

// Lookup 提供错误码查询能力。
var Lookup = map[string]Definition{
	InvalidRequest.Code:         InvalidRequest,
	Unauthorized.Code:           Unauthorized,
	InvalidUserID.Code:          InvalidUserID,
	UserNotFound.Code:           UserNotFound,
	TooManyRequests.Code:        TooManyRequests,
	InvalidStateTransition.Code: InvalidStateTransition,
	ValidationFailed.Code:       ValidationFailed,
	QuestNotFound.Code:          QuestNotFound,
	DetailNotFound.Code:         DetailNotFound,
	TemplateNotFound.Code:       TemplateNotFound,
	ConcurrencyConflict.Code:    ConcurrencyConflict,
	ConfigurationError.Code:     ConfigurationError,
}

// Get 根据错误码返回 Definition，若不存在则返回空 Definition。
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error"}
}

// FieldError 单个字段的校验失败信息
type FieldError struct {
	DetailID int64  `json:"detail_id"`
	Field    string `json:"field"`
	Reason   string `json:"reason"`
}

// ValidationError 参数批量校验失败，一个字段一条
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s(%d): %s", f.Field, f.DetailID, f.Reason))
	}
	return ValidationFailed.Message + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ValidationFailed
}

// Add 追加一条字段错误
func (e *ValidationError) Add(detailID int64, field, reason string) {
	e.Fields = append(e.Fields, FieldError{DetailID: detailID, Field: field, Reason: reason})
}

// HasErrors 是否存在字段错误
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// TransitionError 带上下文的非法状态迁移
type TransitionError struct {
	From   string
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s quest in state %s", InvalidStateTransition.Message, e.Action, e.From)
}

func (e *TransitionError) Unwrap() error {
	return InvalidStateTransition
}
