package errors

import "errors"

// ========== 错误码常量定义 ==========

// CodeSuccess 成功码
const (
	CodeSuccess = 200
)

// HTTP层错误码 (400-599)
const (
	CodeInvalidParam = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeConflict     = 409
	CodeServerError  = 500
)

// ========== 业务错误类型 ==========

// AppError 带错误码的业务错误，由response层转换为统一返回格式
type AppError struct {
	Code    int    // 对应上面的错误码常量
	Message string // 返回给调用方的消息
}

func (e *AppError) Error() string {
	return e.Message
}

// NewAccessDenied 拒绝访问（不区分"不存在"和"未批准"，避免泄露成员状态）
func NewAccessDenied(message string) *AppError {
	return &AppError{Code: CodeForbidden, Message: message}
}

// NewNotFound 资源不存在（仅在调用方有权知道存在性时使用）
func NewNotFound(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message}
}

// NewConflict 状态冲突（已是成员、邀请已处理等，可由调用方修正）
func NewConflict(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message}
}

// NewValidation 参数校验错误，发生在任何状态变更之前
func NewValidation(message string) *AppError {
	return &AppError{Code: CodeInvalidParam, Message: message}
}

// NewUnauthorized 未认证
func NewUnauthorized(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: message}
}

// AsAppError 提取业务错误，非业务错误返回nil
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
