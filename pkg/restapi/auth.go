package restapi

import (
	"crypto/ed25519"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/iotaledger/hive.go/crypto/pem"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/iota.go/v4/hexutil"
	"github.com/iotaledger/tangle-core/pkg/jwt"
)

// APIMiddleware exposes the public routes as they are and the protected routes behind JWT auth.
// Every other route is refused.
func APIMiddleware(publicRoutes []string, protectedRoutes []string, auth *jwt.Auth) (echo.MiddlewareFunc, error) {
	public, err := NewRouteFilter(publicRoutes)
	if err != nil {
		return nil, ierrors.Wrap(err, "invalid public routes")
	}

	protected, err := NewRouteFilter(protectedRoutes)
	if err != nil {
		return nil, ierrors.Wrap(err, "invalid protected routes")
	}

	matchPublic := func(c echo.Context) bool {
		return public.Matches(c.Request().RequestURI)
	}

	jwtAllow := func(c echo.Context, subject string, claims *jwt.AuthClaims) bool {
		if protected.Matches(c.Request().RequestURI) {
			return claims.VerifySubject(subject)
		}

		return false
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		jwtMiddlewareHandler := auth.Middleware(matchPublic, jwtAllow)(next)

		return func(c echo.Context) error {
			if matchPublic(c) || protected.Matches(c.Request().RequestURI) {
				return jwtMiddlewareHandler(c)
			}

			return echo.ErrForbidden
		}
	}, nil
}

// LoadOrCreateIdentity reads the node identity from the PEM file, or creates and stores a new one if the file does not exist.
func LoadOrCreateIdentity(filePath string) (ed25519.PrivateKey, bool, error) {
	_, err := os.Stat(filePath)
	switch {
	case os.IsNotExist(err):
		_, privateKey, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, false, ierrors.Wrap(err, "unable to generate identity")
		}

		if err := pem.WriteEd25519PrivateKeyToPEMFile(filePath, privateKey); err != nil {
			return nil, false, ierrors.Wrapf(err, "unable to store identity (%s)", filePath)
		}

		return privateKey, true, nil

	case err == nil:
		privateKey, err := pem.ReadEd25519PrivateKeyFromPEMFile(filePath)
		if err != nil {
			return nil, false, ierrors.Wrapf(err, "unable to read identity (%s)", filePath)
		}

		return privateKey, false, nil

	default:
		return nil, false, ierrors.Wrapf(err, "unable to check identity file (%s)", filePath)
	}
}

// IdentitySubject is the JWT subject of a node identity.
func IdentitySubject(privateKey ed25519.PrivateKey) string {
	publicKey, ok := privateKey.Public().(ed25519.PublicKey)
	if !ok {
		return ""
	}

	return hexutil.EncodeHex(publicKey)
}
