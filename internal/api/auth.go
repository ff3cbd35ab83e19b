package api

import (
	"context"
	"net/http"
	"time"
)

// LoginStatus is the outcome of a login attempt.
type LoginStatus string

const (
	LoginOK     LoginStatus = "ok"
	LoginDenied LoginStatus = "denied"
	LoginError  LoginStatus = "error"
)

// LoginRequest is the payload of the login endpoint.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is the body of the login, refresh and logout endpoints.
type AuthResponse struct {
	Status string `json:"status"`
}

// UserScope is an access group granted to a user.
type UserScope struct {
	ID               string     `json:"id"`
	ScopeName        string     `json:"scope_name"`
	ScopeDescription *string    `json:"scope_description"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at"`
}

// User is the account behind the current session.
type User struct {
	ID         string      `json:"id"`
	Username   string      `json:"username"`
	FirstName  *string     `json:"first_name"`
	LastName   *string     `json:"last_name"`
	MiddleName *string     `json:"middle_name"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  *time.Time  `json:"updated_at"`
	Scopes     []UserScope `json:"scopes"`
}

// HasScope reports whether the user holds the named scope.
func (u User) HasScope(name string) bool {
	for _, s := range u.Scopes {
		if s.ScopeName == name {
			return true
		}
	}
	return false
}

// Login exchanges credentials for session cookies, which land in the
// client's jar. A 401 means the credentials were rejected.
func Login(ctx context.Context, c *Client, username, password string) LoginStatus {
	result := Execute[AuthResponse](ctx, c, LoginEndpoint, RequestOptions{
		Method:      http.MethodPost,
		Body:        LoginRequest{Username: username, Password: password},
		Credentials: CredentialsInclude,
	})
	if result.StatusCode == http.StatusUnauthorized {
		return LoginDenied
	}
	resp, ok := result.Value()
	if !ok {
		return LoginError
	}
	switch LoginStatus(resp.Status) {
	case LoginOK:
		return LoginOK
	case LoginDenied:
		return LoginDenied
	default:
		return LoginError
	}
}

// Me returns the user behind the current session.
func Me(ctx context.Context, c *Client) Result[User] {
	return Execute[User](ctx, c, MeEndpoint, RequestOptions{Credentials: CredentialsInclude})
}

// Logout ends the session on the backend and drops local cookies whatever
// the backend answers.
func Logout(ctx context.Context, c *Client) Result[AuthResponse] {
	result := Execute[AuthResponse](ctx, c, LogoutEndpoint, RequestOptions{
		Method:      http.MethodPost,
		Credentials: CredentialsInclude,
		SkipRenewal: true,
	})
	if c.Jar != nil {
		c.Jar.Clear()
	}
	return result
}
