package jwt

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token type discriminators embedded in the "typ" claim. Verification
// rejects a credential presented with the wrong verifier.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed or signature invalid")
	ErrWrongTokenType = errors.New("wrong token type")
)

// Identity is the subject embedded into issued credentials.
type Identity struct {
	UserID   string
	TenantID string
	RoleID   string
	Email    string
}

// Claims is the JWT payload for both access and refresh credentials.
type Claims struct {
	UserID    string `json:"uid"`
	TenantID  string `json:"tid,omitempty"`
	RoleID    string `json:"rid,omitempty"`
	Email     string `json:"email,omitempty"`
	TokenType string `json:"typ"`
	jwtlib.RegisteredClaims
}

// TokenPair is the result of issuing paired credentials sharing one jti.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	JTI          string `json:"-"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Config holds the issuer's immutable signing configuration.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
}

// Issuer signs and verifies access/refresh credentials. Secrets are fixed at
// construction; access and refresh must use different secrets so a leaked
// refresh signer cannot mint access credentials.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	audience      string
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("jwt: access and refresh secrets are required")
	}
	if subtle.ConstantTimeCompare([]byte(cfg.AccessSecret), []byte(cfg.RefreshSecret)) == 1 {
		return nil, errors.New("jwt: access and refresh secrets must differ")
	}
	iss := &Issuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
	}
	if iss.accessTTL <= 0 {
		iss.accessTTL = DefaultAccessTTL
	}
	if iss.refreshTTL <= 0 {
		iss.refreshTTL = DefaultRefreshTTL
	}
	if iss.issuer == "" {
		iss.issuer = "mx-identity"
	}
	if iss.audience == "" {
		iss.audience = "mx-api"
	}
	return iss, nil
}

// AccessTTL returns the configured access credential lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL returns the configured refresh credential lifetime.
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssueAccess signs a short-lived access credential with a fresh jti.
func (i *Issuer) IssueAccess(id Identity) (string, error) {
	return i.issueAccess(id, uuid.New().String())
}

func (i *Issuer) issueAccess(id Identity, jti string) (string, error) {
	claims := Claims{
		UserID:           id.UserID,
		TenantID:         id.TenantID,
		RoleID:           id.RoleID,
		Email:            id.Email,
		TokenType:        TypeAccess,
		RegisteredClaims: i.registeredClaims(jti, i.accessTTL),
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(i.accessSecret)
}

// IssueRefresh signs a long-lived refresh credential carrying the jti of its
// paired access credential. Role and email stay out of the refresh payload.
func (i *Issuer) IssueRefresh(id Identity, jti string) (string, error) {
	claims := Claims{
		UserID:           id.UserID,
		TenantID:         id.TenantID,
		TokenType:        TypeRefresh,
		RegisteredClaims: i.registeredClaims(jti, i.refreshTTL),
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(i.refreshSecret)
}

// IssuePair issues an access/refresh pair sharing one generated jti.
func (i *Issuer) IssuePair(id Identity) (*TokenPair, error) {
	jti := uuid.New().String()
	access, err := i.issueAccess(id, jti)
	if err != nil {
		return nil, err
	}
	refresh, err := i.IssueRefresh(id, jti)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		JTI:          jti,
		ExpiresIn:    int64(i.accessTTL.Seconds()),
	}, nil
}

// VerifyAccess validates signature, expiry, issuer, audience and type of an
// access credential.
func (i *Issuer) VerifyAccess(tokenStr string) (*Claims, error) {
	return i.verify(tokenStr, i.accessSecret, TypeAccess)
}

// VerifyRefresh validates signature, expiry, issuer, audience and type of a
// refresh credential.
func (i *Issuer) VerifyRefresh(tokenStr string) (*Claims, error) {
	return i.verify(tokenStr, i.refreshSecret, TypeRefresh)
}

func (i *Issuer) verify(tokenStr string, secret []byte, wantType string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwtlib.WithIssuer(i.issuer),
		jwtlib.WithAudience(i.audience),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrWrongTokenType, claims.TokenType, wantType)
	}
	return claims, nil
}

// DecodeUnverified extracts claims WITHOUT validating the signature or
// expiry. Diagnostics only; never call this on a trust-deciding path.
func DecodeUnverified(tokenStr string) (*Claims, error) {
	parser := jwtlib.NewParser()
	token, _, err := parser.ParseUnverified(tokenStr, &Claims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func (i *Issuer) registeredClaims(jti string, ttl time.Duration) jwtlib.RegisteredClaims {
	now := time.Now()
	return jwtlib.RegisteredClaims{
		ID:        jti,
		Issuer:    i.issuer,
		Audience:  jwtlib.ClaimStrings{i.audience},
		ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwtlib.NewNumericDate(now),
	}
}
