// Package auth guards the tap's status endpoints with a shared bearer token.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// Validator validates an authentication token.
type Validator interface {
	Validate(token string) error
}

// StaticToken accepts a single shared token. An empty Token denies everything.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(token string) error

func (f FuncValidator) Validate(token string) error {
	return f(token)
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Middleware rejects requests whose bearer token v does not accept.
func Middleware(v Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok || v.Validate(token) != nil {
			c.Header("WWW-Authenticate", `Bearer realm="iggywire"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthorized.Error()})
			return
		}
		c.Next()
	}
}
