package contextKey

// ctxKey is unexported so no other package can fabricate colliding context keys.
type ctxKey string

// PrincipalKey is the request context key under which the authorization
// middleware stores the verified Principal.
const PrincipalKey ctxKey = "principal"
