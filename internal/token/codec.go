package token

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/exlearn/billing-service/internal/config"
	"github.com/exlearn/billing-service/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the session credential payload. The field names are part
// of the cookie contract with the web client.
type Claims struct {
	UserID       string                     `json:"user_id"`
	FullName     string                     `json:"full_name,omitempty"`
	Username     string                     `json:"username,omitempty"`
	Email        string                     `json:"email,omitempty"`
	AvatarURL    string                     `json:"avatar_url,omitempty"`
	Locale       string                     `json:"locale,omitempty"`
	IsDemo       bool                       `json:"is_demo"`
	IsVerified   bool                       `json:"is_verified"`
	Subscription []domain.SubscriptionEntry `json:"subscription,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies session credentials with an RSA key pair.
type Codec struct {
	priv *rsa.PrivateKey
	pub  *rsa.PublicKey
}

// NewCodec loads the key pair from base64 config values or PEM files.
func NewCodec(cfg *config.Config) (*Codec, error) {
	privPEM, err := keyMaterial(cfg.JWT.PrivateKeyBase64, cfg.JWT.PrivateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("token: load private key: %w", err)
	}
	pubPEM, err := keyMaterial(cfg.JWT.PublicKeyBase64, cfg.JWT.PublicKeyFile)
	if err != nil {
		return nil, fmt.Errorf("token: load public key: %w", err)
	}

	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
	if err != nil {
		return nil, fmt.Errorf("token: parse private key: %w", err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, fmt.Errorf("token: parse public key: %w", err)
	}

	return &Codec{priv: priv, pub: pub}, nil
}

// NewCodecFromKeys builds a codec from in-memory keys, mainly for tests.
func NewCodecFromKeys(priv *rsa.PrivateKey) *Codec {
	return &Codec{priv: priv, pub: &priv.PublicKey}
}

func keyMaterial(b64, file string) ([]byte, error) {
	if b64 != "" {
		return base64.StdEncoding.DecodeString(b64)
	}
	if file == "" {
		return nil, errors.New("no key material configured")
	}
	return os.ReadFile(file)
}

// Issue signs a session credential for the user.
func (c *Codec) Issue(user domain.User) (string, error) {
	fullName := user.FullName
	if fullName == "" {
		fullName = "Anonymous"
	}

	claims := Claims{
		UserID:       user.ID,
		FullName:     fullName,
		Username:     user.Username,
		Email:        user.PrimaryEmail,
		AvatarURL:    user.AvatarURL,
		Locale:       user.PrimaryLocale,
		IsDemo:       user.IsDemo,
		IsVerified:   user.IsVerified,
		Subscription: user.Subscription,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.priv)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and returns the embedded claims.
func (c *Codec) Decode(raw string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.pub, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token: verify: %w", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("token: invalid claims")
	}
	if claims.UserID == "" {
		return nil, errors.New("token: missing user_id")
	}
	return claims, nil
}

// RawClaimsSegment extracts the middle (payload) segment of a signed
// token. The web client reads it from a second, non-httpOnly cookie.
func RawClaimsSegment(raw string) string {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return ""
	}
	return parts[1]
}
