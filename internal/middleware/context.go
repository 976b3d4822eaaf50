package middleware

import "context"

// contextKey defines a custom type for context keys to avoid collisions.
type contextKey string

const (
	userContextKey = contextKey("user")
	csrfContextKey = contextKey("csrf")
)

// UserInfo represents the essential user information stored in the session and request context.
type UserInfo struct {
	Subject string
	Admin   bool
}

// Anonymous reports whether nobody is logged in.
func (u *UserInfo) Anonymous() bool {
	return u.Subject == "" || u.Subject == anonymousSubject
}

// GetUserInfo retrieves the user information from the request context.
func GetUserInfo(ctx context.Context) *UserInfo {
	if userInfo, ok := ctx.Value(userContextKey).(*UserInfo); ok {
		return userInfo
	}
	// Return an anonymous user if no user info is found in the context.
	return &UserInfo{Subject: anonymousSubject}
}

// SetUserInfo adds the user information to the request context.
func SetUserInfo(ctx context.Context, userInfo *UserInfo) context.Context {
	return context.WithValue(ctx, userContextKey, userInfo)
}

// CSRFToken returns the token forms must echo back, or "" outside the CSRF middleware.
func CSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(csrfContextKey).(string)
	return token
}

func contextWithCSRF(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfContextKey, token)
}
