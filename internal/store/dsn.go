package store

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// schemes naming the same postgres family under different driver tags.
var postgresSchemes = map[string]bool{
	"postgres":            true,
	"postgresql":          true,
	"postgresql+asyncpg":  true,
	"postgresql+psycopg":  true,
	"postgresql+psycopg2": true,
	"postgresql+pg8000":   true,
	"postgres+pgx":        true,
	"pgx":                 true,
}

// ExpandDatabaseURL resolves ${VAR} references in raw through lookup.
func ExpandDatabaseURL(raw string, lookup func(string) string) string {
	return os.Expand(raw, lookup)
}

// NormalizeDatabaseURL rewrites any accepted postgres connection string into
// postgresql:// form, converting sslmode into the boolean ssl parameter.
func NormalizeDatabaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty database url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse database url: %w", err)
	}
	if !postgresSchemes[strings.ToLower(u.Scheme)] {
		return "", fmt.Errorf("unsupported database url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("database url has no host")
	}
	u.Scheme = "postgresql"

	q := u.Query()
	if mode := q.Get("sslmode"); mode != "" {
		enabled, err := sslModeEnabled(mode)
		if err != nil {
			return "", err
		}
		q.Del("sslmode")
		if q.Get("ssl") == "" {
			q.Set("ssl", strconv.FormatBool(enabled))
		}
	}
	if v := q.Get("ssl"); v != "" {
		enabled, err := parseSSLFlag(v)
		if err != nil {
			return "", err
		}
		q.Set("ssl", strconv.FormatBool(enabled))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func sslModeEnabled(mode string) (bool, error) {
	switch strings.ToLower(mode) {
	case "require", "verify-ca", "verify-full", "prefer", "allow":
		return true, nil
	case "disable":
		return false, nil
	}
	return false, fmt.Errorf("unknown sslmode %q", mode)
}

func parseSSLFlag(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on", "require":
		return true, nil
	case "false", "0", "no", "off", "disable":
		return false, nil
	}
	return false, fmt.Errorf("invalid ssl flag %q", v)
}

// DriverDSN turns a normalized url into the form pgx parses, mapping the ssl
// flag back onto sslmode.
func DriverDSN(normalized string) (string, error) {
	u, err := url.Parse(normalized)
	if err != nil {
		return "", fmt.Errorf("failed to parse database url: %w", err)
	}
	u.Scheme = "postgres"

	q := u.Query()
	if v := q.Get("ssl"); v != "" {
		q.Del("ssl")
		if v == "true" {
			q.Set("sslmode", "require")
		} else {
			q.Set("sslmode", "disable")
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SanitizedTarget describes the connection target without credentials.
func SanitizedTarget(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil {
		return "invalid"
	}
	ssl := u.Query().Get("ssl")
	if ssl == "" {
		ssl = "default"
	}
	return fmt.Sprintf("host=%s db=%s ssl=%s", u.Host, strings.TrimPrefix(u.Path, "/"), ssl)
}
