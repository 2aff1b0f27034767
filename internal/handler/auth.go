package handler

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"marketplace/internal/config"
	"marketplace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ctxUserIDKey = "userId"
	userIDHeader = "X-User-ID"
)

type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// AuthMiddleware jwt 模式校验 Bearer token，header 模式信任网关注入的 X-User-ID
func AuthMiddleware(cfg config.AuthConfig) gin.HandlerFunc {
	if cfg.Mode == config.AuthModeHeader {
		return headerAuth()
	}
	return jwtAuth([]byte(cfg.JWTSecret))
}

func jwtAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "缺少 Authorization 请求头")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "Authorization 格式错误")
			return
		}

		userID, err := ParseToken(secret, parts[1])
		if err != nil {
			response.Unauthorized(c, "token 无效或已过期")
			return
		}

		c.Set(ctxUserIDKey, userID)
		c.Next()
	}
}

func headerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.GetHeader(userIDHeader), 10, 64)
		if err != nil || userID <= 0 {
			response.Unauthorized(c, "缺少或非法的 "+userIDHeader)
			return
		}
		c.Set(ctxUserIDKey, userID)
		c.Next()
	}
}

// NewToken 签发 HS256 token，本地调试和测试使用
func NewToken(secret []byte, userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func ParseToken(secret []byte, tokenString string) (int64, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}
	if !token.Valid || claims.UserID <= 0 {
		return 0, errors.New("token 缺少 user_id")
	}
	return claims.UserID, nil
}

func GetUserID(c *gin.Context) (int64, bool) {
	v, exists := c.Get(ctxUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := v.(int64)
	return userID, ok
}
