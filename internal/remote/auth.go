package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/novelshare/novelsync/internal/domain"
)

// Identity endpoints live under /auth/v1, separate from the REST tables.

type sessionResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresAt    int64    `json:"expires_at"`
	User         userBody `json:"user"`
}

type userBody struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

type authError struct {
	Message  string `json:"msg"`
	ErrorMsg string `json:"error_description"`
}

func (u userBody) toDomain() domain.User {
	user := domain.User{ID: u.ID, Email: u.Email}
	if name, ok := u.UserMetadata["username"].(string); ok {
		user.Username = name
	}
	return user
}

func (s sessionResponse) toDomain() *domain.Session {
	return &domain.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
		User:         s.User.toDomain(),
	}
}

// doAuth performs a request against /auth/v1. Unlike doRest it reports auth
// endpoint failures with the provider's message.
func (c *Client) doAuth(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	reqURL := c.baseURL + "/auth/v1/" + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.token())
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.ErrRemoteOffline
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var ae authError
		json.Unmarshal(data, &ae)
		msg := ae.ErrorMsg
		if msg == "" {
			msg = ae.Message
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
			if msg != "" {
				return nil, fmt.Errorf("%w: %s", domain.ErrAuthFailed, msg)
			}
			return nil, domain.ErrAuthFailed
		}
		return nil, fmt.Errorf("auth error: status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	return data, nil
}

// CurrentUser returns the signed-in user, or (nil, nil) when signed out.
func (c *Client) CurrentUser(ctx context.Context) (*domain.User, error) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return nil, nil
	}
	user := sess.User
	return &user, nil
}

// Session returns the current session, or (nil, nil) when signed out.
func (c *Client) Session(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, nil
	}
	sess := *c.session
	return &sess, nil
}

// SetSession installs a previously persisted session without a network round
// trip. Passing nil clears the session silently (no SIGNED_OUT event).
func (c *Client) SetSession(session *domain.Session) {
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
}

// SignUp registers a new account. The username is carried in user metadata;
// the profile row is created separately once the session exists.
func (c *Client) SignUp(ctx context.Context, email, password, username string) (*domain.Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]any{"username": username},
	}
	data, err := c.doAuth(ctx, http.MethodPost, "signup", nil, body)
	if err != nil {
		return nil, err
	}
	var sr sessionResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		return nil, fmt.Errorf("failed to decode signup response: %w", err)
	}
	if sr.AccessToken == "" {
		// email confirmation pending, no session yet
		return nil, nil
	}
	sess := sr.toDomain()
	c.installSession(sess, domain.AuthSignedIn)
	return sess, nil
}

// SignIn exchanges email/password credentials for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	q := url.Values{}
	q.Set("grant_type", "password")
	body := map[string]string{"email": email, "password": password}
	data, err := c.doAuth(ctx, http.MethodPost, "token", q, body)
	if err != nil {
		return nil, err
	}
	var sr sessionResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		return nil, fmt.Errorf("failed to decode sign-in response: %w", err)
	}
	sess := sr.toDomain()
	c.installSession(sess, domain.AuthSignedIn)
	return sess, nil
}

// SignOut revokes the session remotely (best effort) and always clears it
// locally, emitting SIGNED_OUT.
func (c *Client) SignOut(ctx context.Context) error {
	_, err := c.doAuth(ctx, http.MethodPost, "logout", nil, nil)
	c.installSession(nil, domain.AuthSignedOut)
	if err != nil {
		c.logger.Debug("remote sign-out failed", "error", err)
	}
	return nil
}

// OAuthURL returns the redirect URL that starts an OAuth sign-in flow.
func (c *Client) OAuthURL(provider, redirectTo string) string {
	q := url.Values{}
	q.Set("provider", provider)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return c.baseURL + "/auth/v1/authorize?" + q.Encode()
}

// ResetPassword requests a password-recovery email.
func (c *Client) ResetPassword(ctx context.Context, email string) error {
	_, err := c.doAuth(ctx, http.MethodPost, "recover", nil, map[string]string{"email": email})
	return err
}

// UpdatePassword changes the signed-in user's password.
func (c *Client) UpdatePassword(ctx context.Context, newPassword string) error {
	c.mu.Lock()
	signedIn := c.session != nil
	c.mu.Unlock()
	if !signedIn {
		return domain.ErrNotSignedIn
	}
	_, err := c.doAuth(ctx, http.MethodPut, "user", nil, map[string]string{"password": newPassword})
	return err
}

// OnAuthChange registers a listener for auth events and returns a disposer.
func (c *Client) OnAuthChange(fn func(domain.AuthEvent, *domain.Session)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextListener
	c.nextListener++
	c.authListeners = append(c.authListeners, authListener{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.authListeners {
			if l.id == id {
				c.authListeners = append(c.authListeners[:i], c.authListeners[i+1:]...)
				return
			}
		}
	}
}

// installSession swaps the session and notifies auth listeners outside the
// lock.
func (c *Client) installSession(sess *domain.Session, event domain.AuthEvent) {
	c.mu.Lock()
	c.session = sess
	listeners := make([]authListener, len(c.authListeners))
	copy(listeners, c.authListeners)
	c.mu.Unlock()

	c.logger.Info("auth state changed", "event", string(event))
	for _, l := range listeners {
		l.fn(event, sess)
	}
}
