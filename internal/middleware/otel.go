package middleware

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// NewServerTracerConfig 创建 Hertz Server 的追踪配置
// 返回用于初始化 Hertz server 的配置选项和追踪中间件
func NewServerTracerConfig(opts ...hertztracing.Option) (config.Option, app.HandlerFunc) {
	tracer, cfg := hertztracing.NewServerTracer(opts...)
	return tracer, hertztracing.ServerMiddleware(cfg)
}

// UserSpanMiddleware 认证之后把用户 ID 写到当前请求 span
func UserSpanMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if userID, ok := GetUserID(ctx, c); ok {
			span := trace.SpanFromContext(ctx)
			span.SetAttributes(attribute.String("enduser.id", strconv.FormatInt(userID, 10)))
		}
		if requestID := c.GetHeader("X-Request-Id"); len(requestID) > 0 {
			trace.SpanFromContext(ctx).SetAttributes(attribute.String("http.request_id", string(requestID)))
		}
		c.Next(ctx)
	}
}
