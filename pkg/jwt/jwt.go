package jwt

import (
	"crypto/ed25519"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/blake2b"

	"github.com/iotaledger/hive.go/ierrors"
)

var (
	// ErrJWTInvalidClaims is returned when the JWT is valid but its claims do not allow the request.
	ErrJWTInvalidClaims = echo.NewHTTPError(http.StatusUnauthorized, "invalid jwt claims")
)

const contextKeyJWT = "jwt"

// AuthClaims are the claims of the API tokens issued by the node.
type AuthClaims struct {
	jwt.StandardClaims
}

func (c *AuthClaims) compare(field string, expected string) bool {
	if field == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(field), []byte(expected)) == 1
}

// VerifySubject compares the subject of the claims against the expected one.
func (c *AuthClaims) VerifySubject(expected string) bool {
	return c.compare(c.Subject, expected)
}

// Auth issues and verifies API tokens signed with a secret derived from the node identity and a salt.
type Auth struct {
	subject        string
	sessionTimeout time.Duration
	secret         []byte
}

// NewAuth creates a JWT Auth. A zero session timeout issues tokens that never expire.
func NewAuth(salt string, sessionTimeout time.Duration, subject string, privateKey ed25519.PrivateKey) (*Auth, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, ierrors.Errorf("invalid private key length: %d", len(privateKey))
	}

	secret := blake2b.Sum256(append(privateKey.Seed(), []byte(salt)...))

	return &Auth{
		subject:        subject,
		sessionTimeout: sessionTimeout,
		secret:         secret[:],
	}, nil
}

// Middleware authenticates every request the skipper does not skip and asks allow whether the claims grant it.
func (j *Auth) Middleware(skipper middleware.Skipper, allow func(c echo.Context, subject string, claims *AuthClaims) bool) echo.MiddlewareFunc {
	config := middleware.JWTConfig{
		ContextKey:    contextKeyJWT,
		Claims:        &AuthClaims{},
		SigningKey:    j.secret,
		SigningMethod: middleware.AlgorithmHS256,
	}

	// the echo middleware only parses the token and stores it in the context
	parseToken := middleware.JWTWithConfig(config)(func(echo.Context) error { return nil })

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper(c) {
				return next(c)
			}

			if err := parseToken(c); err != nil {
				return err
			}

			token, ok := c.Get(contextKeyJWT).(*jwt.Token)
			if !ok || !token.Valid {
				return middleware.ErrJWTInvalid
			}

			claims, ok := token.Claims.(*AuthClaims)
			if !ok || !allow(c, j.subject, claims) {
				return ErrJWTInvalidClaims
			}

			return next(c)
		}
	}
}

// IssueJWT returns a signed token for the subject of the Auth.
func (j *Auth) IssueJWT() (string, error) {
	now := time.Now()

	stdClaims := jwt.StandardClaims{
		Subject:   j.subject,
		Issuer:    j.subject,
		Audience:  j.subject,
		IssuedAt:  now.Unix(),
		NotBefore: now.Unix(),
	}
	if j.sessionTimeout > 0 {
		stdClaims.ExpiresAt = now.Add(j.sessionTimeout).Unix()
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, &AuthClaims{StandardClaims: stdClaims}).SignedString(j.secret)
}

// VerifyJWT parses the token and reports whether it is valid and allowed by the claims check.
func (j *Auth) VerifyJWT(token string, allow func(claims *AuthClaims) bool) bool {
	parsed, err := jwt.ParseWithClaims(token, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ierrors.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return j.secret, nil
	})
	if err != nil || !parsed.Valid {
		return false
	}

	claims, ok := parsed.Claims.(*AuthClaims)

	return ok && allow(claims)
}
