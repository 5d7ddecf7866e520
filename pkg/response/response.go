package response

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"

	"QuestLoop/pkg/errors"
)

// ErrorResponse 统一的错误响应格式
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Details map[string]interface{} `json:"details,omitempty"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
}

// SuccessResponse 统一的成功响应格式
type SuccessResponse struct {
	Data interface{}            `json:"data"`
	Meta map[string]interface{} `json:"meta,omitempty"`
}

// StatusFor 根据业务错误码映射 HTTP 状态码
func StatusFor(err error) int {
	var def errors.Definition
	if !stderrors.As(err, &def) {
		return http.StatusInternalServerError
	}

	switch def.Code {
	case errors.QuestNotFound.Code, errors.DetailNotFound.Code,
		errors.TemplateNotFound.Code, errors.UserNotFound.Code:
		return http.StatusNotFound // 404
	case errors.InvalidStateTransition.Code, errors.ConcurrencyConflict.Code:
		return http.StatusConflict // 409
	case errors.ValidationFailed.Code, errors.ConfigurationError.Code:
		return http.StatusUnprocessableEntity // 422
	case errors.InvalidRequest.Code, errors.InvalidUserID.Code:
		return http.StatusBadRequest // 400
	case errors.Unauthorized.Code:
		return http.StatusUnauthorized // 401
	case errors.TooManyRequests.Code:
		return http.StatusTooManyRequests // 429
	default:
		return http.StatusInternalServerError // 500
	}
}

// Body 生成错误响应体，校验错误附带字段明细
func Body(err error) ErrorResponse {
	var (
		def     errors.Definition
		details map[string]interface{}
		code    = "INTERNAL_ERROR"
		message = err.Error()
	)

	if stderrors.As(err, &def) {
		code = def.Code
		message = def.Message
	}

	var verr *errors.ValidationError
	if stderrors.As(err, &verr) {
		details = map[string]interface{}{"fields": verr.Fields}
	}

	var terr *errors.TransitionError
	if stderrors.As(err, &terr) {
		message = terr.Error()
	}

	return ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// Error 返回错误响应
func Error(ctx context.Context, c *app.RequestContext, err error) {
	c.JSON(StatusFor(err), Body(err))
}

func Success(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Data: data,
	})
}

func SuccessWithMeta(ctx context.Context, c *app.RequestContext, data interface{}, meta map[string]interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Data: data,
		Meta: meta,
	})
}

func BindError(ctx context.Context, c *app.RequestContext, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    errors.InvalidRequest.Code,
			Message: err.Error(),
		},
	})
}
