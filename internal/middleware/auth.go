package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"pocketledger/internal/clock"
	apperrors "pocketledger/internal/errors"
	"pocketledger/internal/models"
)

const (
	defaultAccessTokenExpiry = 15 * time.Minute
	refreshTokenExpiry       = 7 * 24 * time.Hour
	tokenIssuer              = "pocketledger-api"

	// accessTokenQuery lets EventSource clients, which cannot set headers,
	// authenticate stream requests.
	accessTokenQuery = "access_token"
)

// JWTClaims represents the claims in the JWT
type JWTClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 access and refresh tokens.
type Tokens struct {
	key       []byte
	accessTTL time.Duration
	clock     clock.Clock
}

// NewTokens creates a token issuer. A non-positive accessTTL falls back to
// 15 minutes.
func NewTokens(secret string, accessTTL time.Duration, clk clock.Clock) *Tokens {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTokenExpiry
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Tokens{key: []byte(secret), accessTTL: accessTTL, clock: clk}
}

// AccessTTL returns the lifetime of access tokens.
func (t *Tokens) AccessTTL() time.Duration {
	return t.accessTTL
}

// GenerateAccessToken generates a short-lived JWT access token for a user.
func (t *Tokens) GenerateAccessToken(user *models.User) (string, error) {
	return t.sign(user, "access", t.accessTTL)
}

// GenerateRefreshToken generates a long-lived JWT refresh token for a user.
func (t *Tokens) GenerateRefreshToken(user *models.User) (string, error) {
	return t.sign(user, "refresh", refreshTokenExpiry)
}

func (t *Tokens) sign(user *models.User, tokenType string, ttl time.Duration) (string, error) {
	now := t.clock.Now()
	claims := &JWTClaims{
		UserID:    user.ID,
		Email:     user.Email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.key)
}

func (t *Tokens) parse(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.key, nil
	}, jwt.WithTimeFunc(t.clock.Now), jwt.WithIssuer(tokenIssuer))

	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

// ValidateRefreshToken parses and validates a refresh token JWT.
// Returns the claims if valid, or an error if the token is invalid,
// expired, or not a refresh token.
func (t *Tokens) ValidateRefreshToken(tokenString string) (*JWTClaims, error) {
	claims, err := t.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "refresh" {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

// HashToken returns the SHA-256 hex digest of a token string.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// AuthMiddleware verifies the JWT token and sets the user in the context
func (t *Tokens) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			abortWithError(c, apperrors.ErrAuthRequired)
			return
		}

		claims, err := t.parse(tokenString)
		if err != nil {
			abortWithError(c, apperrors.ErrInvalidToken)
			return
		}

		// Reject refresh tokens used as access tokens
		if claims.TokenType != "access" {
			abortWithError(c, apperrors.ErrInvalidToken)
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("email", claims.Email)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if q := c.Query(accessTokenQuery); q != "" {
			return q, true
		}
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func abortWithError(c *gin.Context, appErr *apperrors.AppError) {
	c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
		"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}
