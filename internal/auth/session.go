// Package auth manages the user session: credential exchange with the
// remote service, durable token storage and the cached user snapshot that
// lets the app come back up offline.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/devonagro/herdsync/internal/store"
	"github.com/devonagro/herdsync/internal/types"
)

// ErrNotLoggedIn means no refresh token is stored, so the session cannot
// be renewed.
var ErrNotLoggedIn = errors.New("not logged in")

// tokenFile is the JSON shape persisted next to the database.
type tokenFile struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       int64  `json:"userId,omitempty"`
}

// Session holds the token pair on disk and implements the token source the
// API client authenticates with. Login and refresh talk to the auth
// endpoints directly; they run before a valid token exists, so they cannot
// go through the authenticated request helper.
type Session struct {
	baseURL string
	hc      *http.Client
	path    string
	db      *store.Store
}

// NewSession creates a session backed by the token file at path.
func NewSession(baseURL string, timeout time.Duration, path string, db *store.Store) *Session {
	return &Session{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: timeout},
		path:    path,
		db:      db,
	}
}

// Login exchanges credentials for a token pair. When the account spans
// several tenants the first call comes back without a token and with the
// tenant list; the caller picks one and calls again with tenantID set. On
// success the tokens are persisted and the user profile is fetched and
// cached for offline continuity.
func (s *Session) Login(ctx context.Context, login, password string, tenantID *int64) (*types.LoginResponse, error) {
	body, err := json.Marshal(map[string]any{
		"login":    login,
		"password": password,
		"tenantId": tenantID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal login request: %w", err)
	}

	resp, err := s.postJSON(ctx, "/auth/login", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("login failed: status %d", resp.StatusCode)
	}

	var loginResp types.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}

	if loginResp.NeedsTenantSelection() {
		return &loginResp, nil
	}
	if loginResp.Token == "" {
		return nil, errors.New("login response carried no token")
	}

	if err := s.saveTokens(loginResp.Token, loginResp.RefreshToken, 0); err != nil {
		return nil, err
	}

	// Cache the profile for offline login continuity. Login still
	// succeeds when this fails; the warning is enough.
	if err := s.fetchAndCacheUserInfo(ctx, loginResp.Token); err != nil {
		slog.Warn("could not cache user profile", "error", err)
	}

	return &loginResp, nil
}

// AccessToken returns the stored access token, empty when none exists.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	tokens, err := s.readTokens()
	if err != nil {
		return "", err
	}
	return tokens.AccessToken, nil
}

// Refresh exchanges the stored refresh token for a new pair and persists it.
func (s *Session) Refresh(ctx context.Context) (string, error) {
	tokens, err := s.readTokens()
	if err != nil {
		return "", err
	}
	if tokens.RefreshToken == "" {
		return "", ErrNotLoggedIn
	}

	body, err := json.Marshal(map[string]string{"refreshToken": tokens.RefreshToken})
	if err != nil {
		return "", fmt.Errorf("marshal refresh request: %w", err)
	}

	resp, err := s.postJSON(ctx, "/auth/refresh", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("token refresh failed: status %d", resp.StatusCode)
	}

	var refreshed struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&refreshed); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}

	if err := s.saveTokens(refreshed.Token, refreshed.RefreshToken, tokens.UserID); err != nil {
		return "", err
	}
	return refreshed.Token, nil
}

// UserInfo returns the cached user snapshot for the logged-in user.
func (s *Session) UserInfo(ctx context.Context) (*types.UserData, error) {
	tokens, err := s.readTokens()
	if err != nil {
		return nil, err
	}
	if tokens.UserID == 0 {
		return nil, ErrNotLoggedIn
	}
	return s.db.GetUserData(ctx, tokens.UserID)
}

// IsAuthenticated reports whether an access token is stored.
func (s *Session) IsAuthenticated() bool {
	tokens, err := s.readTokens()
	return err == nil && tokens.AccessToken != ""
}

// Logout discards the token file, the cached user snapshot and the
// reference-data cache. The next login starts from an empty cache.
func (s *Session) Logout(ctx context.Context) error {
	tokens, err := s.readTokens()
	if err != nil {
		return err
	}

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token file: %w", err)
	}

	if tokens.UserID != 0 {
		if err := s.db.ClearUserData(ctx, tokens.UserID); err != nil {
			return err
		}
	}
	return s.db.ClearReferenceData(ctx)
}

func (s *Session) fetchAndCacheUserInfo(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/app/user/info", nil)
	if err != nil {
		return fmt.Errorf("build user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Session-Token", token)

	resp, err := s.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("user info failed: status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read user info: %w", err)
	}

	var info types.UserInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return fmt.Errorf("decode user info: %w", err)
	}

	err = s.db.SaveUserData(ctx, &types.UserData{
		UserID:   info.UserID,
		Name:     info.Name,
		Email:    info.Email,
		Username: info.Username,
		Data:     string(raw),
		LastSync: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	tokens, err := s.readTokens()
	if err != nil {
		return err
	}
	return s.saveTokens(tokens.AccessToken, tokens.RefreshToken, info.UserID)
}

func (s *Session) postJSON(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return s.hc.Do(req)
}

func (s *Session) readTokens() (tokenFile, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return tokenFile{}, nil
	}
	if err != nil {
		return tokenFile{}, fmt.Errorf("read token file: %w", err)
	}

	var tokens tokenFile
	if err := json.Unmarshal(data, &tokens); err != nil {
		return tokenFile{}, fmt.Errorf("parse token file: %w", err)
	}
	return tokens, nil
}

func (s *Session) saveTokens(access, refresh string, userID int64) error {
	data, err := json.Marshal(tokenFile{
		AccessToken:  access,
		RefreshToken: refresh,
		UserID:       userID,
	})
	if err != nil {
		return fmt.Errorf("marshal token file: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create session directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}
