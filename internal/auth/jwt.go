package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/carebridge/realtime-service/internal/models"
)

var (
	ErrMissingToken = errors.New("authorization token missing")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims carries the user identity and its role-scoped link ids. Tokens are
// issued by the platform's auth service; this service only validates.
type Claims struct {
	UserID    string      `json:"user_id"`
	Role      models.Role `json:"role"`
	DoctorID  string      `json:"doctor_id,omitempty"`
	PatientID string      `json:"patient_id,omitempty"`
	jwt.RegisteredClaims
}

type Validator struct {
	secret []byte
}

func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// ParseBearerToken extracts the token from an Authorization header.
func ParseBearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}

func (v *Validator) Validate(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrMissingToken
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
