package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"

	"agendabot/internal/config"
	"agendabot/internal/types"
)

// oauthConfig builds the oauth2 client configuration for the Google Calendar
// read-only scope.
func oauthConfig(cfg config.GoogleConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret.Unmask(),
		RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
		Scopes:       []string{calendar.CalendarReadonlyScope},
		Endpoint:     google.Endpoint,
	}
}

// credentialFromToken converts an oauth2 token into the persisted credential
// shape.
func credentialFromToken(tok *oauth2.Token, scopes []string) *types.Credential {
	return &types.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		Scopes:       scopes,
	}
}

// GoogleRefresher implements Refresher against Google's token endpoint via
// the oauth2 package.
type GoogleRefresher struct {
	cfg *oauth2.Config
}

// NewGoogleRefresher creates a GoogleRefresher from the configured OAuth
// client.
func NewGoogleRefresher(cfg config.GoogleConfig) *GoogleRefresher {
	return &GoogleRefresher{cfg: oauthConfig(cfg)}
}

// Refresh exchanges the credential's refresh token for a new access token.
// The input credential is not mutated.
func (r *GoogleRefresher) Refresh(ctx context.Context, cred *types.Credential) (*types.Credential, error) {
	source := r.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})
	tok, err := source.Token()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamOAuth, "token endpoint refresh failed", err)
	}
	return credentialFromToken(tok, cred.Scopes), nil
}

// Token implements oauth2.TokenSource over the stored credential, letting the
// calendar service consume the managed credential directly.
type staticCredentialSource struct {
	cred *types.Credential
}

func (s *staticCredentialSource) Token() (*oauth2.Token, error) {
	return &oauth2.Token{
		AccessToken:  s.cred.AccessToken,
		RefreshToken: s.cred.RefreshToken,
		TokenType:    s.cred.TokenType,
		Expiry:       s.cred.Expiry,
	}, nil
}

// TokenSource adapts a credential for use with google.golang.org/api client
// options. No refresh happens here: the manager owns renewal, and a stale
// token surfaces downstream as a per-source query failure.
func TokenSource(cred *types.Credential) oauth2.TokenSource {
	return &staticCredentialSource{cred: cred}
}

// ConsoleAuthorizer implements Authorizer with the out-of-band desktop flow:
// print the consent URL, read the pasted authorization code, exchange it.
// Used by the one-shot auth path on first run in local deployments.
type ConsoleAuthorizer struct {
	cfg    *oauth2.Config
	out    io.Writer
	in     io.Reader
	logger *slog.Logger
}

// NewConsoleAuthorizer creates a ConsoleAuthorizer reading the authorization
// code from in and writing the consent URL to out.
func NewConsoleAuthorizer(cfg config.GoogleConfig, in io.Reader, out io.Writer, logger *slog.Logger) *ConsoleAuthorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleAuthorizer{
		cfg:    oauthConfig(cfg),
		out:    out,
		in:     in,
		logger: logger,
	}
}

// Authorize runs the interactive flow and returns the exchanged credential.
func (a *ConsoleAuthorizer) Authorize(ctx context.Context) (*types.Credential, error) {
	url := a.cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(a.out, "Visit the following URL, authorize the app, and paste the code here:\n%s\n> ", url)

	var code string
	scanner := bufio.NewScanner(a.in)
	if scanner.Scan() {
		code = scanner.Text()
	}
	if code == "" {
		return nil, fmt.Errorf("no authorization code provided")
	}

	tok, err := a.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamOAuth, "authorization code exchange failed", err)
	}

	a.logger.InfoContext(ctx, "interactive authorization complete")
	return credentialFromToken(tok, a.cfg.Scopes), nil
}
