package auth

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"kidsmoney/internal/model"
)

const (
	CookieName = "userId"
	HeaderName = "X-User-Id"
)

var ErrMissingIdentity = errors.New("missing user id")

var idRE = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)

type Identity struct {
	UserID string
	Role model.Role
}

type Resolver struct {
	roles map[string]model.Role
}

// NewResolver grants staff roles to the listed ids. Admin wins when an id
// appears in both lists.
func NewResolver(adminIDs, bankerIDs []string) *Resolver {
	r := &Resolver{roles: map[string]model.Role{}}
	for _, id := range bankerIDs {
		if id = strings.TrimSpace(id); id != "" {
			r.roles[id] = model.RoleBanker
		}
	}
	for _, id := range adminIDs {
		if id = strings.TrimSpace(id); id != "" {
			r.roles[id] = model.RoleAdmin
		}
	}
	return r
}

func (r *Resolver) Resolve(req *http.Request) (Identity, error) {
	id := strings.TrimSpace(req.Header.Get(HeaderName))
	if id == "" {
		if c, err := req.Cookie(CookieName); err == nil {
			id = strings.TrimSpace(c.Value)
		}
	}
	if id == "" {
		return Identity{}, ErrMissingIdentity
	}
	if !idRE.MatchString(id) {
		return Identity{}, errors.New("malformed user id")
	}
	role, ok := r.roles[id]
	if !ok {
		role = model.RolePlayer
	}
	return Identity{UserID: id, Role: role}, nil
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok && id.UserID != ""
}
