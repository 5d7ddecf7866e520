package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/jwt"

	"QuestLoop/pkg/errors"
	"QuestLoop/pkg/response"
)

// IdentityKey token 中用户 ID 的 claim
const IdentityKey = "uid"

var authMiddleware *jwt.HertzJWTMiddleware

// newAuthMiddleware 只校验由认证服务签发的 HS256 token
func newAuthMiddleware(secret []byte) (*jwt.HertzJWTMiddleware, error) {
	return jwt.New(&jwt.HertzJWTMiddleware{
		Realm:       "QuestLoop API",
		Key:         secret,
		Timeout:     time.Hour,
		IdentityKey: IdentityKey,
		TimeFunc:    time.Now,

		PayloadFunc: func(data interface{}) jwt.MapClaims {
			if claims, ok := data.(jwt.MapClaims); ok {
				return claims
			}
			return jwt.MapClaims{}
		},

		IdentityHandler: func(ctx context.Context, c *app.RequestContext) interface{} {
			claims := jwt.ExtractClaims(ctx, c)
			switch v := claims[IdentityKey].(type) {
			case string:
				if id, err := strconv.ParseInt(v, 10, 64); err == nil {
					return id
				}
			case float64:
				return int64(v)
			}
			return nil
		},

		Unauthorized: func(ctx context.Context, c *app.RequestContext, code int, message string) {
			response.Error(ctx, c, errors.Definition{Code: errors.Unauthorized.Code, Message: message})
		},

		TokenLookup:   "header: Authorization, query: token",
		TokenHeadName: "Bearer",
	})
}

func AuthMiddleware() app.HandlerFunc {
	if authMiddleware == nil {
		panic("AuthMiddleware not initialized, call Init() first")
	}
	return authMiddleware.MiddlewareFunc()
}

// GetUserID 从请求上下文中获取用户 ID
func GetUserID(ctx context.Context, c *app.RequestContext) (int64, bool) {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

// IssueToken 为指定用户签发 token，供内部工具和测试使用
func IssueToken(userID int64) (string, error) {
	if authMiddleware == nil {
		return "", fmt.Errorf("auth middleware not initialized")
	}
	token, _, err := authMiddleware.TokenGenerator(jwt.MapClaims{IdentityKey: strconv.FormatInt(userID, 10)})
	return token, err
}
