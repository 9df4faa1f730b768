package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Minter issues a short-lived database credential for a named resource.
type Minter interface {
	MintCredential(ctx context.Context, resource string) (string, error)
}

// InjectCredential sets token as the password of dsn, keeping the username.
func InjectCredential(dsn, token string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse database url: %w", err)
	}
	if u.User == nil || u.User.Username() == "" {
		return "", fmt.Errorf("database url has no username to attach a credential to")
	}
	u.User = url.UserPassword(u.User.Username(), token)
	return u.String(), nil
}

// MaskCredential keeps a short prefix and suffix of token for log correlation.
// Tokens of ten characters or fewer are masked entirely.
func MaskCredential(token string) string {
	if len(token) <= 10 {
		return strings.Repeat("*", len(token))
	}
	return token[:6] + strings.Repeat("*", len(token)-10) + token[len(token)-4:]
}

// CredentialFingerprint is the first 8 hex characters of the token's sha256.
func CredentialFingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:8]
}

// mintedDSN swaps the static password of dsn for a freshly minted credential.
// Any failure is logged and dsn is returned unchanged.
func mintedDSN(ctx context.Context, dsn string, s Settings, minter Minter, log *zap.Logger) string {
	token, err := minter.MintCredential(ctx, s.InstanceName)
	if err == nil && token == "" {
		err = fmt.Errorf("empty credential returned")
	}
	if err != nil {
		log.Warn("Failed to mint database credential, falling back to DATABASE_URL password",
			zap.String("instance", s.InstanceName),
			zap.Error(ErrCredential.Wrap(err)))
		return dsn
	}

	withToken, err := InjectCredential(dsn, token)
	if err != nil {
		log.Warn("Failed to attach database credential, falling back to DATABASE_URL password",
			zap.Error(ErrCredential.Wrap(err)))
		return dsn
	}

	fields := []zap.Field{
		zap.String("instance", s.InstanceName),
		zap.String("fingerprint", CredentialFingerprint(token)),
	}
	if s.LogTokenDebug {
		fields = append(fields, zap.String("token", MaskCredential(token)), zap.Int("length", len(token)))
	}
	log.Info("Using minted database credential", fields...)
	return withToken
}
