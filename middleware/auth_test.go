package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newJWTService(t *testing.T) *JWTService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("open-sesame"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewJWTService("test-key", string(hash))
}

func TestJWTService_Exchange(t *testing.T) {
	s := newJWTService(t)

	token, err := s.Exchange("cli", "open-sesame")
	require.NoError(t, err)
	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "cli", claims.Subject)

	_, err = s.Exchange("cli", "wrong")
	assert.ErrorIs(t, err, ErrInvalidSecret)

	_, err = NewJWTService("k", "").Exchange("cli", "anything")
	assert.ErrorIs(t, err, ErrInvalidSecret)
}

func TestJWTService_RejectsExpiredAndForeignTokens(t *testing.T) {
	s := newJWTService(t)
	token, err := s.GenerateToken("cli")
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	_, err = s.ValidateToken(token)
	assert.Error(t, err)

	other := NewJWTService("other-key", "")
	foreign, err := other.GenerateToken("cli")
	require.NoError(t, err)
	_, err = newJWTService(t).ValidateToken(foreign)
	assert.Error(t, err)
}

func TestHashSecret(t *testing.T) {
	hash, err := HashSecret("pw")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("pw")))
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newJWTService(t)
	router := gin.New()
	router.Use(Auth(s))
	router.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": c.GetString(ContextSubject)})
	})
	token, err := s.GenerateToken("cli")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "bearer token", header: "Bearer " + token, want: http.StatusOK},
		{name: "bare token", header: token, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"subject":"cli"`)
			}
		})
	}
}
