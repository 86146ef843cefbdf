// Package session signs and verifies the stateless session token.
package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/thejerf/abtime"

	"github.com/linkrelay/panel/internal/core/domain"
)

var errEmptySecret = errors.New("session: signing secret is empty")

// claims is the token payload. Field names follow the cookie format consumed
// by the panel front end.
type claims struct {
	UserID              int64  `json:"userId"`
	Username            string `json:"username"`
	Role                string `json:"role"`
	ImpersonatingUserID *int64 `json:"impersonatingUserId,omitempty"`
	jwt.RegisteredClaims
}

// JWTCodec implements ports.SessionCodec with HS256 tokens.
type JWTCodec struct {
	secret []byte
	clock  abtime.AbstractTime
	parser *jwt.Parser
}

// NewJWTCodec returns a codec signing with secret. clock may be nil.
func NewJWTCodec(secret string, clock abtime.AbstractTime) (*JWTCodec, error) {
	if secret == "" {
		return nil, errEmptySecret
	}
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	return &JWTCodec{
		secret: []byte(secret),
		clock:  clock,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithTimeFunc(clock.Now),
		),
	}, nil
}

// Issue signs sess with a fresh issued-at and a fixed expiry of domain.SessionTTL.
func (c *JWTCodec) Issue(sess domain.Session) (string, time.Time, error) {
	if err := sess.Validate(); err != nil {
		return "", time.Time{}, err
	}

	now := c.clock.Now().Truncate(time.Second)
	exp := now.Add(domain.SessionTTL)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID:              sess.UserID,
		Username:            sess.Username,
		Role:                string(sess.Role),
		ImpersonatingUserID: sess.ImpersonatingUserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(sess.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies the signature, algorithm, expiry and payload invariants.
// Every failure collapses to domain.ErrInvalidSession.
func (c *JWTCodec) Parse(token string) (*domain.Session, error) {
	var cl claims
	tok, err := c.parser.ParseWithClaims(token, &cl, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, domain.ErrInvalidSession
	}

	sess := &domain.Session{
		UserID:              cl.UserID,
		Username:            cl.Username,
		Role:                domain.Role(cl.Role),
		ImpersonatingUserID: cl.ImpersonatingUserID,
	}
	if err := sess.Validate(); err != nil {
		return nil, domain.ErrInvalidSession
	}
	return sess, nil
}
