package hasher

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// ErrWeakPassword is returned when a plaintext fails the strength policy.
var ErrWeakPassword = errors.New("password does not meet the strength policy")

// Policy sets the minimum requirements enforced before hashing.
type Policy struct {
	MinLength    int
	RequireUpper bool
	RequireLower bool
	RequireDigit bool
}

// DefaultPolicy is applied when the caller passes a zero policy.
var DefaultPolicy = Policy{MinLength: 8, RequireLower: true, RequireDigit: true}

// Hasher wraps bcrypt with a configurable cost and strength policy.
type Hasher struct {
	cost   int
	policy Policy
}

func New(cost int, policy Policy) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if policy.MinLength <= 0 {
		policy.MinLength = DefaultPolicy.MinLength
	}
	return &Hasher{cost: cost, policy: policy}
}

// CheckPolicy validates plaintext strength without hashing it.
func (h *Hasher) CheckPolicy(plain string) error {
	if len(plain) < h.policy.MinLength {
		return fmt.Errorf("%w: at least %d characters required", ErrWeakPassword, h.policy.MinLength)
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range plain {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if h.policy.RequireUpper && !hasUpper {
		return fmt.Errorf("%w: an uppercase letter is required", ErrWeakPassword)
	}
	if h.policy.RequireLower && !hasLower {
		return fmt.Errorf("%w: a lowercase letter is required", ErrWeakPassword)
	}
	if h.policy.RequireDigit && !hasDigit {
		return fmt.Errorf("%w: a digit is required", ErrWeakPassword)
	}
	return nil
}

// Hash enforces the policy, then produces a bcrypt digest.
func (h *Hasher) Hash(plain string) (string, error) {
	if err := h.CheckPolicy(plain); err != nil {
		return "", err
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether plain matches digest. A corrupt digest is a
// mismatch, never an error surfaced to the caller as valid.
func (h *Hasher) Verify(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}

// NeedsRehash reports whether digest was produced with a lower cost than
// currently configured, enabling lazy migration on successful login.
func (h *Hasher) NeedsRehash(digest string) bool {
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		return true
	}
	return cost < h.cost
}
