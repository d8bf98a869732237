package auth

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"jdcportal/internal/domain/user"
	"jdcportal/internal/pkg/jwt"
	"jdcportal/internal/pkg/tokenbox"
)

// OAuthClient is the part of *oauth2.Config used by the login flow.
type OAuthClient interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
	TokenSource(ctx context.Context, t *oauth2.Token) oauth2.TokenSource
}

type ProfileStore interface {
	Upsert(ctx context.Context, p *user.Profile) error
	GetByUID(ctx context.Context, uid string) (*user.Profile, error)
}

// Identity is what the login flow needs from Google's userinfo endpoint.
type Identity struct {
	ID    string
	Email string
	Name  string
}

type LoginResult struct {
	Profile      *user.Profile
	SessionToken string
}

type Service struct {
	oauth       OAuthClient
	profiles    ProfileStore
	box         *tokenbox.Box
	jwt         *jwt.Service
	adminEmails map[string]bool
	userInfo    func(ctx context.Context, ts oauth2.TokenSource) (*Identity, error)
}

// NewService wires the login flow. Accounts listed in adminEmails get the
// Admin role on first login; everyone else starts as Other.
func NewService(oauth OAuthClient, profiles ProfileStore, box *tokenbox.Box, jwtService *jwt.Service, adminEmails []string) *Service {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins[e] = true
		}
	}
	return &Service{
		oauth:       oauth,
		profiles:    profiles,
		box:         box,
		jwt:         jwtService,
		adminEmails: admins,
		userInfo:    googleUserInfo,
	}
}

// LoginURL asks for offline access so Google returns a refresh token that the
// background sync can reuse when this user is made a processor.
func (s *Service) LoginURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (s *Service) Complete(ctx context.Context, code string) (*LoginResult, error) {
	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	id, err := s.userInfo(ctx, s.oauth.TokenSource(ctx, tok))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserInfo, err)
	}
	if id.ID == "" || id.Email == "" {
		return nil, ErrMissingIdentity
	}

	sealed, err := s.box.Seal(tok.RefreshToken)
	if err != nil {
		return nil, err
	}

	role := user.RoleOther
	if s.adminEmails[strings.ToLower(id.Email)] {
		role = user.RoleAdmin
	}
	if err := s.profiles.Upsert(ctx, &user.Profile{
		UID:                   id.ID,
		Email:                 id.Email,
		DisplayName:           id.Name,
		Role:                  role,
		Sectors:               []string{},
		EncryptedRefreshToken: sealed,
	}); err != nil {
		return nil, err
	}

	p, err := s.profiles.GetByUID(ctx, id.ID)
	if err != nil {
		return nil, err
	}
	token, err := s.jwt.GenerateToken(p.UID, p.Email, string(p.Role), p.Sectors)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Profile: p, SessionToken: token}, nil
}

func googleUserInfo(ctx context.Context, ts oauth2.TokenSource) (*Identity, error) {
	srv, err := googleoauth2.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, err
	}
	info, err := srv.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return &Identity{ID: info.Id, Email: info.Email, Name: info.Name}, nil
}
