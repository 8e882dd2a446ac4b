package jwt

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"campus_echo/internal/models"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	AccountID int64       `json:"account_id"`
	Role      models.Role `json:"role"`
	gojwt.RegisteredClaims
}

type Codec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewCodec(secret, issuer string, ttl time.Duration) *Codec {
	return &Codec{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// * NewAccessToken выпускает подписанный access токен с id аккаунта и ролью
func (c *Codec) NewAccessToken(accountID int64, role models.Role) (string, error) {
	const op = "jwt.NewAccessToken"

	now := c.now().UTC()

	claims := Claims{
		AccountID: accountID,
		Role:      role,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   strconv.FormatInt(accountID, 10),
			Issuer:    c.issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// ParseAccessToken never returns anything but ErrInvalidToken on failure, so
// callers cannot tell an expired token from a forged one.
func (c *Codec) ParseAccessToken(tokenStr string) (Claims, error) {
	var claims Claims

	token, err := gojwt.ParseWithClaims(tokenStr, &claims, func(t *gojwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	},
		gojwt.WithIssuer(c.issuer),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	if claims.AccountID <= 0 || !claims.Role.Valid() {
		return Claims{}, ErrInvalidToken
	}

	return claims, nil
}

func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// * NewRefreshToken генерирует случайный непрозрачный refresh токен
func NewRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("jwt.NewRefreshToken: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewOpaqueToken is used for verification and password reset links.
func NewOpaqueToken() string {
	return uuid.NewString()
}

// * HashToken создает SHA256 хеш токена для хранения в базе
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
