package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.pilab.hu/onenote/cache"
	"go.pilab.hu/onenote/domain"
	apperrors "go.pilab.hu/onenote/errors"
	"go.pilab.hu/onenote/log"
)

// tokenEntryID is the token-store key for the persisted sign-in. The
// application serves a single user, so one slot is enough.
const tokenEntryID = "current-user"

// IdentityToolkitProvider implements Provider against an Identity-Toolkit
// style REST API (the protocol Firebase Auth speaks). All requests carry
// the API key as the `key` query parameter.
type IdentityToolkitProvider struct {
	baseURL  string // e.g. https://identitytoolkit.googleapis.com/v1
	tokenURL string // e.g. https://securetoken.googleapis.com/v1
	apiKey   string
	hc       *http.Client
	tokens   cache.TokenStore
	logger   log.Logger

	mu        sync.Mutex
	current   *domain.Principal
	resolved  bool
	listeners map[int]func(*domain.Principal)
	nextID    int

	// dispatchMu serializes listener invocation so observers see state
	// changes in order.
	dispatchMu sync.Mutex
}

// NewIdentityToolkitProvider creates a provider client. The token store
// is used to persist the refresh token between runs.
func NewIdentityToolkitProvider(baseURL, tokenURL, apiKey string, tokens cache.TokenStore, logger log.Logger) *IdentityToolkitProvider {
	return &IdentityToolkitProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		tokenURL:  strings.TrimRight(tokenURL, "/"),
		apiKey:    apiKey,
		hc:        &http.Client{Timeout: 15 * time.Second},
		tokens:    tokens,
		logger:    logger,
		listeners: make(map[int]func(*domain.Principal)),
	}
}

// accountResponse is the payload returned by signUp and
// signInWithPassword.
type accountResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

// CreateAccount implements Provider.CreateAccount.
func (p *IdentityToolkitProvider) CreateAccount(ctx context.Context, email, password string) (*domain.Principal, error) {
	var resp accountResponse
	err := p.post(ctx, p.endpoint("accounts:signUp"), map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return p.adopt(ctx, &resp), nil
}

// SignIn implements Provider.SignIn.
func (p *IdentityToolkitProvider) SignIn(ctx context.Context, email, password string) (*domain.Principal, error) {
	var resp accountResponse
	err := p.post(ctx, p.endpoint("accounts:signInWithPassword"), map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return p.adopt(ctx, &resp), nil
}

// SignOut implements Provider.SignOut.
func (p *IdentityToolkitProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.current = nil
	p.resolved = true
	p.mu.Unlock()

	if err := p.tokens.Delete(ctx, tokenEntryID); err != nil {
		p.logger.Warn(ctx, "failed to delete persisted token on sign-out",
			map[string]interface{}{"error": err.Error()})
	}

	p.notify(nil)
	return nil
}

// UpdateDisplayName implements Provider.UpdateDisplayName.
func (p *IdentityToolkitProvider) UpdateDisplayName(ctx context.Context, principal *domain.Principal, name string) error {
	if principal == nil || principal.IDToken == "" {
		return apperrors.ErrNotAuthenticated
	}

	var resp struct {
		DisplayName string `json:"displayName"`
	}
	err := p.post(ctx, p.endpoint("accounts:update"), map[string]any{
		"idToken":           principal.IDToken,
		"displayName":       name,
		"returnSecureToken": false,
	}, &resp)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.current != nil && p.current.UserID == principal.UserID {
		p.current.DisplayName = name
	}
	p.mu.Unlock()

	return nil
}

// CurrentPrincipal implements Provider.CurrentPrincipal.
func (p *IdentityToolkitProvider) CurrentPrincipal() *domain.Principal {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	cp := *p.current
	return &cp
}

// AuthStateChanges implements Provider.AuthStateChanges.
func (p *IdentityToolkitProvider) AuthStateChanges(listener func(*domain.Principal)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	resolved := p.resolved
	var current *domain.Principal
	if p.current != nil {
		cp := *p.current
		current = &cp
	}
	p.mu.Unlock()

	// Late subscribers get the already-resolved state right away.
	if resolved {
		p.dispatchMu.Lock()
		listener(current)
		p.dispatchMu.Unlock()
	}

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Start implements Provider.Start. The restore runs in the background;
// the initial notification is delivered when it completes, signed in or
// not.
func (p *IdentityToolkitProvider) Start(ctx context.Context) {
	go func() {
		principal := p.restore(ctx)

		p.mu.Lock()
		p.current = principal
		p.resolved = true
		p.mu.Unlock()

		p.notify(principal)
	}()
}

// restore exchanges a persisted refresh token for a fresh principal. Any
// failure degrades to signed-out.
func (p *IdentityToolkitProvider) restore(ctx context.Context) *domain.Principal {
	entry, err := p.tokens.Get(ctx, tokenEntryID)
	if err != nil {
		if err != cache.ErrTokenNotFound {
			p.logger.Warn(ctx, "token store read failed during restore",
				map[string]interface{}{"error": err.Error()})
		}
		return nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", entry.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.tokenURL+"/token?key="+url.QueryEscape(p.apiKey),
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := p.hc.Do(req)
	if err != nil {
		p.logger.Warn(ctx, "token refresh failed during restore",
			map[string]interface{}{"error": err.Error()})
		return nil
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil || httpResp.StatusCode != http.StatusOK {
		return nil
	}

	var tok struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		UserID       string `json:"user_id"`
		ExpiresIn    string `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil
	}

	principal := &domain.Principal{
		UserID:       tok.UserID,
		IDToken:      tok.IDToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiryFrom(tok.ExpiresIn),
	}

	// The token endpoint knows nothing about the profile; look it up.
	var lookup struct {
		Users []struct {
			LocalID     string `json:"localId"`
			Email       string `json:"email"`
			DisplayName string `json:"displayName"`
		} `json:"users"`
	}
	err = p.post(ctx, p.endpoint("accounts:lookup"), map[string]any{
		"idToken": principal.IDToken,
	}, &lookup)
	if err == nil && len(lookup.Users) > 0 {
		principal.Email = lookup.Users[0].Email
		principal.DisplayName = lookup.Users[0].DisplayName
		if principal.UserID == "" {
			principal.UserID = lookup.Users[0].LocalID
		}
	}

	p.persist(ctx, principal)

	return principal
}

// adopt installs a fresh sign-in as the current principal, persists its
// refresh token, and notifies listeners.
func (p *IdentityToolkitProvider) adopt(ctx context.Context, resp *accountResponse) *domain.Principal {
	principal := &domain.Principal{
		UserID:       resp.LocalID,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    expiryFrom(resp.ExpiresIn),
	}

	p.mu.Lock()
	p.current = principal
	p.resolved = true
	p.mu.Unlock()

	p.persist(ctx, principal)
	p.notify(principal)

	return principal
}

func (p *IdentityToolkitProvider) persist(ctx context.Context, principal *domain.Principal) {
	if principal == nil || principal.RefreshToken == "" {
		return
	}
	err := p.tokens.Set(ctx, &cache.TokenEntry{
		ID:           tokenEntryID,
		UserID:       principal.UserID,
		RefreshToken: principal.RefreshToken,
		IDToken:      principal.IDToken,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		p.logger.Warn(ctx, "failed to persist provider token",
			map[string]interface{}{"error": err.Error()})
	}
}

func (p *IdentityToolkitProvider) notify(principal *domain.Principal) {
	p.mu.Lock()
	listeners := make([]func(*domain.Principal), 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()
	for _, l := range listeners {
		var cp *domain.Principal
		if principal != nil {
			c := *principal
			cp = &c
		}
		l(cp)
	}
}

func (p *IdentityToolkitProvider) endpoint(name string) string {
	return fmt.Sprintf("%s/%s?key=%s", p.baseURL, name, url.QueryEscape(p.apiKey))
}

// post issues a JSON POST and decodes either the success payload into out
// or the provider's error envelope into an AuthError.
func (p *IdentityToolkitProvider) post(ctx context.Context, endpoint string, payload map[string]any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.hc.Do(req)
	if err != nil {
		return apperrors.NewNetworkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewNetworkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseProviderError(raw, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode provider response: %w", err)
		}
	}

	return nil
}

// parseProviderError maps the identity toolkit error envelope to an
// AuthError. Messages sometimes carry a detail suffix after " : "; the
// code is the part before it.
func parseProviderError(raw []byte, status int) error {
	var envelope struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error.Message == "" {
		return apperrors.NewAuthError(fmt.Sprintf("HTTP_%d", status), strings.TrimSpace(string(raw)))
	}

	code := envelope.Error.Message
	if i := strings.Index(code, " : "); i >= 0 {
		code = code[:i]
	}
	code = strings.TrimSpace(code)

	return apperrors.NewAuthError(code, envelope.Error.Message)
}

func expiryFrom(expiresIn string) time.Time {
	sec, err := strconv.Atoi(expiresIn)
	if err != nil || sec <= 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(sec) * time.Second)
}

var _ Provider = (*IdentityToolkitProvider)(nil)
