// Package auth issues and checks short-lived access grants. A grant is
// handed out by AccessShare after the share's access gate passed and lets
// the follow-up download skip the gate password.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophshare/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const grantIssuer = "gophshare"

// GrantClaims binds a grant to one file reached through one share.
type GrantClaims struct {
	jwt.RegisteredClaims
	FileID  string `json:"fid"`
	ShareID string `json:"sid"`
}

// GenerateGrant signs an HS256 grant valid for validity.
func GenerateGrant(fileID, shareID string, secretKey []byte, validity time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, GrantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    grantIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		FileID:  fileID,
		ShareID: shareID,
	})

	s, err := token.SignedString(secretKey)
	if err != nil {
		return "", fmt.Errorf("sign grant: %w", err)
	}
	return s, nil
}

// ParseGrant verifies signature, issuer and expiry. Any failure is reported
// as common.ErrInvalidToken.
func ParseGrant(tokenString string, secretKey []byte) (*GrantClaims, error) {
	claims := &GrantClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(grantIssuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", common.ErrInvalidToken)
		}
		return nil, common.ErrInvalidToken
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// ValidateGrant checks that tokenString is a valid grant for fileID.
func ValidateGrant(tokenString string, secretKey []byte, fileID string) error {
	claims, err := ParseGrant(tokenString, secretKey)
	if err != nil {
		return err
	}
	if claims.FileID != fileID {
		return fmt.Errorf("%w: grant issued for another file", common.ErrInvalidToken)
	}
	return nil
}
