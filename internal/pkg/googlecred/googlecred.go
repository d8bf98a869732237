// Package googlecred builds OAuth token sources for the background Google
// integrations. A service-account key takes precedence for Sheets, and for
// Gmail only when a mailbox to impersonate is configured; otherwise the refresh
// token of the profile flagged as processor for that integration is used.
package googlecred

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"

	"jdcportal/internal/domain/user"
	"jdcportal/internal/pkg/tokenbox"
)

var ErrNoCredential = errors.New("no google credential configured")

// ProcessorFinder is the slice of the profile repository this package needs.
type ProcessorFinder interface {
	FindProcessor(ctx context.Context, kind user.ProcessorKind) (*user.Profile, error)
}

type Provider struct {
	oauth          *oauth2.Config
	serviceAccount string
	gmailSubject   string
	profiles       ProcessorFinder
	box            *tokenbox.Box
}

func NewProvider(oauth *oauth2.Config, serviceAccountFile string, profiles ProcessorFinder, box *tokenbox.Box) *Provider {
	return &Provider{
		oauth:          oauth,
		serviceAccount: serviceAccountFile,
		profiles:       profiles,
		box:            box,
	}
}

// WithGmailSubject makes Gmail use the service account, impersonating subject.
func (p *Provider) WithGmailSubject(subject string) *Provider {
	p.gmailSubject = subject
	return p
}

// OAuthConfig returns the web login client config shared with the auth handler.
func OAuthConfig(clientID, clientSecret, redirectURL string, scopes ...string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       scopes,
	}
}

func (p *Provider) TokenSource(ctx context.Context, kind user.ProcessorKind, scopes ...string) (oauth2.TokenSource, error) {
	switch {
	case p.serviceAccount == "":
	case kind != user.ProcessorGmail:
		data, err := os.ReadFile(p.serviceAccount)
		if err != nil {
			return nil, fmt.Errorf("read service account: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, scopes...)
		if err != nil {
			return nil, fmt.Errorf("parse service account: %w", err)
		}
		return creds.TokenSource, nil
	case p.gmailSubject != "":
		// A service account has no mailbox of its own.
		conf, err := p.delegatedConfig(scopes...)
		if err != nil {
			return nil, err
		}
		return conf.TokenSource(ctx), nil
	}

	if p.oauth == nil || p.profiles == nil {
		return nil, ErrNoCredential
	}
	profile, err := p.profiles.FindProcessor(ctx, kind)
	if errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("%w: no %s processor", ErrNoCredential, kind)
	}
	if err != nil {
		return nil, err
	}
	refresh, err := p.box.Open(profile.EncryptedRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("open refresh token of %s: %w", profile.UID, err)
	}
	if refresh == "" {
		return nil, fmt.Errorf("%w: %s processor %s has no refresh token", ErrNoCredential, kind, profile.UID)
	}
	return p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh}), nil
}

func (p *Provider) delegatedConfig(scopes ...string) (*jwt.Config, error) {
	data, err := os.ReadFile(p.serviceAccount)
	if err != nil {
		return nil, fmt.Errorf("read service account: %w", err)
	}
	conf, err := google.JWTConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse service account: %w", err)
	}
	conf.Subject = p.gmailSubject
	return conf, nil
}
