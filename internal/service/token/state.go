package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/contasync/contasync/internal/apperrors"
)

const (
	defaultStateTTL      = 10 * time.Minute
	defaultSigningMethod = "HS256"
)

// Claims carried through the OAuth 'state' parameter.
// The token response has no customer identity in it, so the customer id
// and folder travel to the callback inside the signed state.
type stateClaims struct {
	jwt.RegisteredClaims
	CustomerID     string `json:"cid"`
	CustomerFolder string `json:"cfd"`
}

type stateManager struct {
	key []byte
	alg jwt.SigningMethod
	ttl time.Duration
}

func newStateManager(secretKey string, ttl time.Duration) (*stateManager, error) {
	if secretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}
	if ttl == 0 {
		ttl = defaultStateTTL
	}

	return &stateManager{
		key: []byte(secretKey),
		alg: jwt.GetSigningMethod(defaultSigningMethod),
		ttl: ttl,
	}, nil
}

func (m *stateManager) Issue(customerID string, customerFolder string) (string, error) {
	now := time.Now().Truncate(time.Second)

	state := jwt.NewWithClaims(m.alg, stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		CustomerID:     customerID,
		CustomerFolder: customerFolder,
	})

	signed, err := state.SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("error while signing state. Err: %w", err)
	}

	return signed, nil
}

func (m *stateManager) Parse(state string) (customerID string, customerFolder string, err error) {
	var claims stateClaims

	_, err = jwt.ParseWithClaims(state, &claims,
		func(t *jwt.Token) (any, error) { return m.key, nil },
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", apperrors.ErrStateInvalid, err)
	}

	if claims.CustomerID == "" {
		return "", "", fmt.Errorf("%w: customer id missing", apperrors.ErrStateInvalid)
	}

	return claims.CustomerID, claims.CustomerFolder, nil
}
