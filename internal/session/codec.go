package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "legacytv"

// ErrInvalidToken is returned for cookies that fail signature or expiry checks.
var ErrInvalidToken = errors.New("invalid session token")

// Codec signs and verifies cookie values as HS256 JWTs.
type Codec struct {
	secret []byte
}

// NewCodec returns a Codec keyed by secret.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Encode returns a token carrying id as its JWT ID, valid until exp.
func (c *Codec) Encode(id string, exp time.Time) (string, error) {
	return c.sign(jwt.RegisteredClaims{ID: id, ExpiresAt: jwt.NewNumericDate(exp)})
}

// Decode verifies token and returns the session id it carries.
func (c *Codec) Decode(token string) (string, error) {
	claims, err := c.parse(token)
	if err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", ErrInvalidToken
	}
	return claims.ID, nil
}

// EncodeNotice signs a short flash message.
func (c *Codec) EncodeNotice(msg string, exp time.Time) (string, error) {
	return c.sign(jwt.RegisteredClaims{Subject: msg, ExpiresAt: jwt.NewNumericDate(exp)})
}

// DecodeNotice verifies a flash cookie and returns its message.
func (c *Codec) DecodeNotice(token string) (string, error) {
	claims, err := c.parse(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (c *Codec) sign(claims jwt.RegisteredClaims) (string, error) {
	claims.Issuer = issuer
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	return s, nil
}

func (c *Codec) parse(token string) (*jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return &claims, nil
}
