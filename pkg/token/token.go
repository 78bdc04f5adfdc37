// Package token issues and validates user session tokens. Access tokens
// are RS256 JWTs signed with a kid-tagged key so verification keys can
// rotate; refresh tokens are opaque and live in redis.
package token

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"studyhive/pkg/oid"
)

const (
	defaultIssuer   = "studyhive-auth"
	defaultAudience = "studyhive-api"
	defaultLeeway   = 30 * time.Second
)

// ErrInvalidToken covers expired, tampered, and unknown-key tokens.
var ErrInvalidToken = errors.New("invalid token")

// Pair is the credential set handed to a client after authentication.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
}

// Signer issues RS256 access tokens.
type Signer struct {
	key      *rsa.PrivateKey
	kid      string
	issuer   string
	audience string
	ttl      time.Duration
}

// NewSigner builds a signer from an in-memory key.
func NewSigner(key *rsa.PrivateKey, kid string, ttl time.Duration) (*Signer, error) {
	if key == nil {
		return nil, errors.New("signing key required")
	}
	if kid == "" {
		return nil, errors.New("key id required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Signer{
		key:      key,
		kid:      kid,
		issuer:   defaultIssuer,
		audience: defaultAudience,
		ttl:      ttl,
	}, nil
}

// NewSignerFromPEM loads the private key from a PEM file.
func NewSignerFromPEM(path, kid string, ttl time.Duration) (*Signer, error) {
	key, err := loadPrivateKey(path)
	if err != nil {
		return nil, err
	}
	return NewSigner(key, kid, ttl)
}

// Sign issues an access token for the user.
func (s *Signer) Sign(userID oid.ID) (string, error) {
	if userID.IsZero() {
		return "", errors.New("user id required")
	}
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{s.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = s.kid
	signed, err := tok.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verifier validates access tokens against a kid -> public key set.
type Verifier struct {
	keys     map[string]*rsa.PublicKey
	issuer   string
	audience string
	leeway   time.Duration
}

// NewVerifier builds a verifier from in-memory keys. The map may contain
// previous keys so older tokens stay valid across rotation.
func NewVerifier(keys map[string]*rsa.PublicKey) (*Verifier, error) {
	if len(keys) == 0 {
		return nil, errors.New("at least one verification key required")
	}
	return &Verifier{
		keys:     keys,
		issuer:   defaultIssuer,
		audience: defaultAudience,
		leeway:   defaultLeeway,
	}, nil
}

// NewVerifierFromPEM loads kid -> public key PEM files.
func NewVerifierFromPEM(files map[string]string) (*Verifier, error) {
	keys := make(map[string]*rsa.PublicKey, len(files))
	for kid, path := range files {
		key, err := loadPublicKey(path)
		if err != nil {
			return nil, fmt.Errorf("load key %s: %w", kid, err)
		}
		keys[kid] = key
	}
	return NewVerifier(keys)
}

// Verify validates the token and returns the subject user identifier.
func (v *Verifier) Verify(tokenString string) (oid.ID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, ok := v.keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	userID, err := oid.Parse(claims.Subject)
	if err != nil || userID.IsZero() {
		return "", fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return userID, nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block in private key file")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return key, nil
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block in public key file")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return key, nil
}
