package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"formautofill/utils"
)

const (
	ContextSubject = "subject"
	tokenTTL       = 24 * time.Hour
)

var ErrInvalidSecret = errors.New("invalid operator secret")

// Claims identify the operator a token was issued to in Subject.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTService issues and validates API tokens. Tokens are granted in exchange
// for the operator secret, whose bcrypt hash is configured.
type JWTService struct {
	secretKey  []byte
	secretHash []byte
	now        func() time.Time
}

func NewJWTService(secretKey, operatorSecretHash string) *JWTService {
	return &JWTService{
		secretKey:  []byte(secretKey),
		secretHash: []byte(operatorSecretHash),
		now:        time.Now,
	}
}

// HashSecret returns the bcrypt hash to configure for an operator secret.
func HashSecret(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(h), nil
}

// Exchange checks the operator secret and issues a token for subject.
func (s *JWTService) Exchange(subject, secret string) (string, error) {
	if len(s.secretHash) == 0 {
		return "", fmt.Errorf("%w: no operator secret configured", ErrInvalidSecret)
	}
	if err := bcrypt.CompareHashAndPassword(s.secretHash, []byte(secret)); err != nil {
		return "", ErrInvalidSecret
	}
	return s.GenerateToken(subject)
}

func (s *JWTService) GenerateToken(subject string) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// Auth rejects requests without a valid bearer token and stores the token
// subject in the context.
func Auth(s *JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			utils.UnauthorizedError(c, "Authorization header required")
			c.Abort()
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		claims, err := s.ValidateToken(tokenString)
		if err != nil {
			utils.LogWarn("token validation failed", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			utils.UnauthorizedError(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextSubject, claims.Subject)
		c.Next()
	}
}
