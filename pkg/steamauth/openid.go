// Package steamauth implements Steam's OpenID 2.0 login flow: the
// authentication mechanism every human user of the API goes through, since
// cs2kz has no password store of its own. It is adapted from the teacher's
// OAuth2 Authorization Code flow (state nonce in Redis, redirect, callback)
// generalized to OpenID 2.0's checkid_setup / check_authentication exchange.
package steamauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kz-league/cs2kz-api/internal/id"
)

const steamOpenIDEndpoint = "https://steamcommunity.com/openid/login"

const stateTTL = 10 * time.Minute

var claimedIDPattern = regexp.MustCompile(`^https://steamcommunity\.com/openid/id/(\d+)$`)

// Flow drives the redirect-to-Steam / verify-callback choreography.
type Flow struct {
	realm      string
	returnURL  string
	rdb        *redis.Client
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFlow builds a Flow. realm and returnURL are the OpenID realm and
// return_to URL this deployment is registered under.
func NewFlow(realm, returnURL string, rdb *redis.Client, logger *slog.Logger) *Flow {
	return &Flow{
		realm:      realm,
		returnURL:  returnURL,
		rdb:        rdb,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// RedirectURL builds the URL to send the browser to in order to start a
// login. A random state nonce is stored in Redis with a short TTL and
// embedded in return_to so the callback can be correlated to this request.
func (f *Flow) RedirectURL(ctx context.Context) (string, error) {
	state, err := randomState()
	if err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}

	if err := f.rdb.Set(ctx, stateKey(state), "1", stateTTL).Err(); err != nil {
		return "", fmt.Errorf("storing openid state: %w", err)
	}

	returnTo, err := addQueryParam(f.returnURL, "state", state)
	if err != nil {
		return "", err
	}

	q := url.Values{
		"openid.ns":         {"http://specs.openid.net/auth/2.0"},
		"openid.mode":       {"checkid_setup"},
		"openid.return_to":  {returnTo},
		"openid.realm":      {f.realm},
		"openid.identity":   {"http://specs.openid.net/auth/2.0/identifier_select"},
		"openid.claimed_id": {"http://specs.openid.net/auth/2.0/identifier_select"},
	}

	return steamOpenIDEndpoint + "?" + q.Encode(), nil
}

// Verify checks a callback request against Steam and returns the resulting
// SteamID. It consumes the state nonce so a callback URL cannot be replayed.
func (f *Flow) Verify(ctx context.Context, r *http.Request) (id.SteamID, error) {
	query := r.URL.Query()

	state := query.Get("state")
	if state == "" {
		return 0, fmt.Errorf("missing state parameter")
	}
	removed, err := f.rdb.Del(ctx, stateKey(state)).Result()
	if err != nil {
		return 0, fmt.Errorf("checking openid state: %w", err)
	}
	if removed == 0 {
		return 0, fmt.Errorf("unknown or expired state")
	}

	claimedID := query.Get("openid.claimed_id")
	matches := claimedIDPattern.FindStringSubmatch(claimedID)
	if matches == nil {
		return 0, fmt.Errorf("unrecognized claimed_id %q", claimedID)
	}

	if err := f.checkAuthentication(ctx, query); err != nil {
		return 0, err
	}

	steamID, err := id.ParseSteamID(matches[1])
	if err != nil {
		return 0, fmt.Errorf("parsing steam id from claimed_id: %w", err)
	}
	return steamID, nil
}

// checkAuthentication echoes every openid.* parameter back to Steam with
// openid.mode=check_authentication, per the OpenID 2.0 direct verification
// step. Steam responds with "is_valid:true" on a line of its own.
func (f *Flow) checkAuthentication(ctx context.Context, callback url.Values) error {
	verify := url.Values{}
	for k, v := range callback {
		if strings.HasPrefix(k, "openid.") {
			verify[k] = v
		}
	}
	verify.Set("openid.mode", "check_authentication")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, steamOpenIDEndpoint, strings.NewReader(verify.Encode()))
	if err != nil {
		return fmt.Errorf("building check_authentication request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling steam check_authentication: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("steam check_authentication returned status %d", resp.StatusCode)
	}

	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	if !strings.Contains(string(buf[:n]), "is_valid:true") {
		return fmt.Errorf("steam rejected the assertion")
	}

	return nil
}

func stateKey(state string) string {
	return "steamauth:state:" + state
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func addQueryParam(rawURL, key, value string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing return url: %w", err)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
