package identity

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssueToken signs an HS256 bearer credential for userID. The platform's auth service
// issues the real ones; this is used by the seed tool and tests.
func IssueToken(userID int64, secret []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"exp": jwt.NewNumericDate(time.Now().Add(validity)),
	})
	return token.SignedString(secret)
}

// VerifyBearer validates an HS256 bearer credential and returns the user id carried in
// its "sub" claim, or in "user_id" when "sub" is absent. Both claims may be a number or
// a numeric string.
func VerifyBearer(tokenString string, secret []byte) (int64, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if !token.Valid {
		return 0, ErrInvalidCredentials
	}

	for _, name := range []string{"sub", "user_id"} {
		if v, ok := claims[name]; ok {
			if id, ok := claimUserID(v); ok {
				return id, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: token carries no user id", ErrInvalidCredentials)
}

func claimUserID(v interface{}) (int64, bool) {
	switch id := v.(type) {
	case float64:
		if id <= 0 || id != float64(int64(id)) {
			return 0, false
		}
		return int64(id), true
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
