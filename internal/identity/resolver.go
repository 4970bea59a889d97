package identity

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sasachat/sasachat/internal/domain"
	"github.com/sasachat/sasachat/pkg/jwt"
)

// ErrUnauthenticated means no usable session token was presented.
var ErrUnauthenticated = errors.New("unauthenticated")

// TokenQueryParam lets browsers, which cannot set headers on a websocket
// upgrade, pass the token in the URL.
const TokenQueryParam = "token"

// Validator checks a session token.
type Validator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// Resolver turns session tokens into identities.
type Resolver struct {
	validator  Validator
	cookieName string
}

func NewResolver(validator Validator, cookieName string) *Resolver {
	return &Resolver{validator: validator, cookieName: cookieName}
}

// TokenFromRequest returns the session token of r, looking at the bearer
// header, then the session cookie, then the token query parameter.
func (r *Resolver) TokenFromRequest(req *http.Request) string {
	if h := req.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); token != "" {
			return token
		}
	}
	if r.cookieName != "" {
		if c, err := req.Cookie(r.cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}
	return req.URL.Query().Get(TokenQueryParam)
}

// FromRequest resolves the identity behind an HTTP request.
func (r *Resolver) FromRequest(req *http.Request) (domain.Identity, error) {
	return r.Resolve(r.TokenFromRequest(req))
}

// Resolve validates token. Every failure wraps ErrUnauthenticated.
func (r *Resolver) Resolve(token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, ErrUnauthenticated
	}

	claims, err := r.validator.ValidateToken(token)
	if err != nil {
		return domain.Identity{}, errors.Join(ErrUnauthenticated, err)
	}

	return domain.Identity{
		UserID:   claims.UserID,
		Nickname: claims.Nickname,
		Roles:    claims.Roles,
	}, nil
}
