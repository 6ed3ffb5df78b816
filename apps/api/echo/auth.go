package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core"
)

const (
	contextTokenKey = "userToken"
	contextActorKey = "actor"
)

// Claims represents the authorization claims issued by the external auth service.
type Claims struct {
	jwt.StandardClaims
	Name  string   `json:"name,omitempty"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

func (c Claims) Actor() core.Actor {
	return core.Actor{ID: c.Subject, Name: c.Name, Email: c.Email, Roles: c.Roles}
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// NewClaims builds the claims of `actor`, valid for `ttl`. The API never issues tokens itself;
// this serves the admin CLI and tests.
func NewClaims(conf *core.Config, actor core.Actor, ttl time.Duration) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   actor.ID,
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:  actor.Name,
		Email: actor.Email,
		Roles: actor.Roles,
	}
}

// GenerateToken generates a JWT token string representing the Claims, signed with `secret`.
func GenerateToken(secret string, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextActor(ctx echo.Context) (core.Actor, error) {
	if actor, ok := ctx.Get(contextActorKey).(core.Actor); ok {
		return actor, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return core.Actor{}, err
	}
	actor := claims.Actor()
	ctx.Set(contextActorKey, actor)
	return actor, nil
}
