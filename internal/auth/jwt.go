package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gthanmon/gemini-account-manager/internal/model"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingRole  = errors.New("token has no valid role")
)

// Claims carries the caller identity. The subject is the user id.
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Issue signs a token for the given caller. Used by operator tooling and tests.
func (v *Verifier) Issue(caller model.Caller, ttl time.Duration) (string, error) {
	now := v.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: caller.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (v *Verifier) Parse(tokenString string) (model.Caller, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return model.Caller{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return model.Caller{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return model.Caller{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if claims.Role != model.RoleAdmin && claims.Role != model.RoleUser {
		return model.Caller{}, ErrMissingRole
	}

	return model.Caller{UserID: claims.Subject, Role: claims.Role}, nil
}
