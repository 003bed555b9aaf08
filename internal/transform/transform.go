package transform

import (
	"crypto/md5"  //nolint:gosec // catalog lookup key, not authentication
	"crypto/sha1" //nolint:gosec // catalog lookup key, not authentication
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"strings"
)

// Operation names accepted in catalog entries. Matching is
// case-insensitive and ignores surrounding whitespace.
const (
	// OpLower lower-cases the identifier.
	OpLower = "lower"
	// OpUpper upper-cases the identifier.
	OpUpper = "upper"
	// OpMD5 hashes to a lower-case hex MD5 digest (Gravatar-style).
	OpMD5 = "md5"
	// OpSHA1 hashes to a lower-case hex SHA-1 digest.
	OpSHA1 = "sha1"
	// OpSHA256 hashes to a lower-case hex SHA-256 digest.
	OpSHA256 = "sha256"
	// OpBase64 encodes with standard base64.
	OpBase64 = "base64"
	// OpURLEncode escapes the identifier for use in a query string.
	OpURLEncode = "urlencode"
)

// Apply transforms the identifier with the named operation. An empty or
// unknown operation returns the identifier unchanged.
func Apply(identifier, operation string) string {
	switch strings.ToLower(strings.TrimSpace(operation)) {
	case OpLower:
		return strings.ToLower(identifier)
	case OpUpper:
		return strings.ToUpper(identifier)
	case OpMD5:
		sum := md5.Sum([]byte(identifier)) //nolint:gosec // lookup key
		return hex.EncodeToString(sum[:])
	case OpSHA1:
		sum := sha1.Sum([]byte(identifier)) //nolint:gosec // lookup key
		return hex.EncodeToString(sum[:])
	case OpSHA256:
		sum := sha256.Sum256([]byte(identifier))
		return hex.EncodeToString(sum[:])
	case OpBase64:
		return base64.StdEncoding.EncodeToString([]byte(identifier))
	case OpURLEncode:
		return url.QueryEscape(identifier)
	default:
		return identifier
	}
}
