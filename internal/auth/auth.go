package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// GenerateTokenValue asks New to create a random control token
const GenerateTokenValue = "generate"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Manager guards the mutating control routes with a shared bearer token
type Manager struct {
	token string
}

// New creates an auth manager. An empty token disables authentication;
// GenerateTokenValue creates a random one, readable through Token.
func New(token string) (*Manager, error) {
	if token == GenerateTokenValue {
		generated, err := GenerateToken()
		if err != nil {
			return nil, err
		}
		token = generated
	}
	return &Manager{token: token}, nil
}

// GenerateToken returns 32 random bytes, hex encoded
func GenerateToken() (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrap(err, "failed to generate token")
	}
	return hex.EncodeToString(tokenBytes), nil
}

// Enabled reports whether a token is required
func (m *Manager) Enabled() bool {
	return m.token != ""
}

// Token returns the configured token
func (m *Manager) Token() string {
	return m.token
}

// ValidateHeader checks an Authorization header value
func (m *Manager) ValidateHeader(header string) error {
	if !m.Enabled() {
		return nil
	}

	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ErrMissingToken
	}
	given := strings.TrimSpace(header[len(prefix):])
	if subtle.ConstantTimeCompare([]byte(given), []byte(m.token)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// Middleware rejects requests without the control token
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := m.ValidateHeader(c.GetHeader("Authorization")); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}
