// Package auth holds pieces shared by the provider OAuth flows.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// stateLifetime bounds how old a callback state may be.
const stateLifetime = 10 * time.Minute

// oauthState ties an OAuth callback to the tenant that initiated the flow.
type oauthState struct {
	CompanyID string `json:"company_id"`
	Nonce     string `json:"nonce"`
	IssuedAt  int64  `json:"issued_at"`
}

// EncodeState packs the tenant id into an OAuth state parameter.
func EncodeState(companyID string) string {
	b := make([]byte, 8)
	rand.Read(b)
	s := oauthState{
		CompanyID: companyID,
		Nonce:     hex.EncodeToString(b),
		IssuedAt:  time.Now().Unix(),
	}
	raw, _ := json.Marshal(s)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeState unpacks and validates a state parameter, returning the tenant
// id it was issued for.
func DecodeState(state string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil {
		return "", fmt.Errorf("malformed state: %w", err)
	}
	var s oauthState
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("malformed state: %w", err)
	}
	if s.CompanyID == "" {
		return "", errors.New("state missing company id")
	}
	age := time.Since(time.Unix(s.IssuedAt, 0))
	if age < 0 || age > stateLifetime {
		return "", errors.New("state expired")
	}
	return s.CompanyID, nil
}
