package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"jobtracker-backend/internal/shared/cache"
	"jobtracker-backend/internal/shared/server/respond"
	"jobtracker-backend/internal/shared/telemetry"
	"jobtracker-backend/internal/users"
)

const (
	stateKeyPrefix  = "oauth_state:"
	defaultStateTTL = 5 * time.Minute
)

// Accounts links a verified Google identity to a local account and returns a signed token.
type Accounts interface {
	UpsertFromGoogle(ctx context.Context, id users.GoogleIdentity) (users.Session, error)
}

// GoogleConfig holds the OAuth client registration and the UI landing page.
type GoogleConfig struct {
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	UIRedirectURL string
}

// GoogleService runs the authorization-code flow against Google. Pending
// states live in a JSONCache so any instance can finish a flow another started.
type GoogleService struct {
	accounts   Accounts
	oauth      *oauth2.Config
	states     cache.JSONCache
	uiRedirect string
	stateTTL   time.Duration
	now        func() time.Time

	// apiEndpoint overrides the Google API base URL.
	apiEndpoint string
}

type pendingState struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewGoogleService builds a GoogleService. A nil states cache falls back to
// process memory.
func NewGoogleService(accounts Accounts, states cache.JSONCache, cfg GoogleConfig) *GoogleService {
	if states == nil {
		states = cache.NewMemoryCache()
	}
	return &GoogleService{
		accounts: accounts,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oauth2api.UserinfoEmailScope, oauth2api.UserinfoProfileScope},
			Endpoint:     google.Endpoint,
		},
		states:     states,
		uiRedirect: cfg.UIRedirectURL,
		stateTTL:   defaultStateTTL,
		now:        time.Now,
	}
}

// Configured reports whether client credentials are present.
func (s *GoogleService) Configured() bool {
	return s.oauth.ClientID != "" && s.oauth.ClientSecret != "" && s.oauth.RedirectURL != ""
}

// RegisterRoutes attaches Google auth routes.
func (s *GoogleService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/google/start", s.start)
	rg.GET("/auth/google/callback", s.callback)
}

func (s *GoogleService) start(c *gin.Context) {
	if !s.Configured() {
		respond.Error(c, http.StatusInternalServerError, "auth_not_configured", "Google auth not configured", nil)
		return
	}

	state := uuid.NewString()
	if err := s.issueState(c.Request.Context(), state); err != nil {
		telemetry.Error("auth.google_state_failed", map[string]any{"error": err.Error()})
		respond.Error(c, http.StatusServiceUnavailable, "auth_unavailable", "could not start sign-in", nil)
		return
	}
	c.Redirect(http.StatusFound, s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

func (s *GoogleService) callback(c *gin.Context) {
	ctx := c.Request.Context()

	// The user declined consent or Google rejected the request.
	if denied := c.Query("error"); denied != "" {
		telemetry.Info("auth.google_denied", map[string]any{"reason": denied})
		s.redirectUI(c, url.Values{"error": {denied}})
		return
	}

	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "missing state or code", nil)
		return
	}
	if !s.consumeState(ctx, state) {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid or expired state", nil)
		return
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "failed to exchange code", nil)
		return
	}

	identity, err := s.fetchIdentity(ctx, token)
	if err != nil {
		telemetry.Warn("auth.google_userinfo_failed", map[string]any{"error": err.Error()})
		respond.Error(c, http.StatusBadGateway, "auth_failed", "failed to fetch user profile", nil)
		return
	}

	sess, err := s.accounts.UpsertFromGoogle(ctx, identity)
	if err != nil {
		telemetry.Error("auth.google_upsert_failed", map[string]any{"error": err.Error()})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to issue token", nil)
		return
	}
	telemetry.Info("auth.google_login", map[string]any{"user_id": sess.User.ID})
	s.redirectUI(c, url.Values{"token": {sess.Token}})
}

func (s *GoogleService) issueState(ctx context.Context, state string) error {
	return s.states.SetJSON(ctx, stateKeyPrefix+state, pendingState{ExpiresAt: s.now().Add(s.stateTTL)}, s.stateTTL)
}

// consumeState accepts a state at most once and only before it expires.
func (s *GoogleService) consumeState(ctx context.Context, state string) bool {
	key := stateKeyPrefix + state
	var pending pendingState
	found, err := s.states.GetJSON(ctx, key, &pending)
	if err != nil || !found {
		return false
	}
	if err := s.states.Del(ctx, key); err != nil {
		telemetry.Warn("auth.google_state_delete_failed", map[string]any{"error": err.Error()})
		return false
	}
	return s.now().Before(pending.ExpiresAt)
}

func (s *GoogleService) fetchIdentity(ctx context.Context, token *oauth2.Token) (users.GoogleIdentity, error) {
	opts := []option.ClientOption{option.WithHTTPClient(s.oauth.Client(ctx, token))}
	if s.apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(s.apiEndpoint))
	}
	api, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return users.GoogleIdentity{}, err
	}
	info, err := api.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return users.GoogleIdentity{}, err
	}
	if info.Id == "" || strings.TrimSpace(info.Email) == "" {
		return users.GoogleIdentity{}, errors.New("userinfo missing id or email")
	}
	if info.VerifiedEmail != nil && !*info.VerifiedEmail {
		return users.GoogleIdentity{}, errors.New("google email is not verified")
	}
	return users.GoogleIdentity{
		Sub:     info.Id,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}

func (s *GoogleService) redirectUI(c *gin.Context, params url.Values) {
	if s.uiRedirect == "" {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "redirect url required", nil)
		return
	}
	u, err := url.Parse(s.uiRedirect)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to redirect", nil)
		return
	}
	q := u.Query()
	for k, v := range params {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	c.Redirect(http.StatusFound, u.String())
}
