package tokens

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token parameters
const (
	DefaultAlgorithm = "HS256"
	DefaultTTL       = time.Hour
	DefaultClockSkew = 30 * time.Second
)

// minKeyBytes is the minimum HMAC key length per algorithm (RFC 7518 section 3.2)
var minKeyBytes = map[string]int{
	"HS256": 32,
	"HS384": 48,
	"HS512": 64,
}

// minSecretEntropy is the lowest accepted Shannon estimate, in bits per byte,
// of the secret's byte distribution. All-same and short repeating secrets
// fall below it.
const minSecretEntropy = 3.0

// Config holds the parameters every issuer and verifier must agree on.
// Build it once at startup and hand the same value to every consumer.
type Config struct {
	Secret    []byte
	Algorithm string
	TTL       time.Duration
	ClockSkew time.Duration
	Issuer    string

	// Now overrides the clock; defaults to time.Now
	Now func() time.Time
}

// Validate checks the algorithm and key strength
func (c Config) Validate() error {
	alg := c.algorithm()
	minLen, ok := minKeyBytes[alg]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}
	if len(c.Secret) < minLen {
		return fmt.Errorf("%w: %s needs at least %d bytes, got %d", ErrWeakSecret, alg, minLen, len(c.Secret))
	}
	if e := SecretEntropy(c.Secret); e < minSecretEntropy {
		return fmt.Errorf("%w: entropy %.2f bits per byte, need %.1f", ErrWeakSecret, e, minSecretEntropy)
	}
	if c.TTL < 0 {
		return fmt.Errorf("token TTL must not be negative")
	}
	if c.ClockSkew < 0 {
		return fmt.Errorf("clock skew must not be negative")
	}
	return nil
}

// SecretEntropy estimates the Shannon entropy of secret in bits per byte
// from its byte frequencies
func SecretEntropy(secret []byte) float64 {
	if len(secret) == 0 {
		return 0
	}
	var counts [256]int
	for _, b := range secret {
		counts[b]++
	}
	n := float64(len(secret))
	var h float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return h
}

func (c Config) algorithm() string {
	if c.Algorithm == "" {
		return DefaultAlgorithm
	}
	return strings.ToUpper(c.Algorithm)
}

func (c Config) ttl() time.Duration {
	if c.TTL == 0 {
		return DefaultTTL
	}
	return c.TTL
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c Config) signingMethod() jwt.SigningMethod {
	return jwt.GetSigningMethod(c.algorithm())
}
