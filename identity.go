package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Nerzal/gocloak/v13"
)

// TokenPair is what a successful login or refresh yields.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Userinfo is the subset of provider claims the backend cares about.
type Userinfo struct {
	Sub               string
	PreferredUsername string
	Email             string
}

// Registration is the payload for creating a new account at the provider.
type Registration struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
	Password  string
	Birthday  string
	Faculty   string
}

// IdentityProvider is the external collaborator that owns credentials and
// tokens. The core never touches token cryptography itself.
type IdentityProvider interface {
	Login(ctx context.Context, username, password string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Introspect(ctx context.Context, accessToken string) (bool, error)
	CreateUser(ctx context.Context, reg Registration) (string, error)
	ListUsers(ctx context.Context) ([]Userinfo, error)
}

// KeycloakProvider implements IdentityProvider against a Keycloak realm.
type KeycloakProvider struct {
	client       *gocloak.GoCloak
	realm        string
	clientID     string
	clientSecret string
	adminUser    string
	adminPass    string
}

func NewKeycloakProvider() (*KeycloakProvider, error) {
	serverURL := os.Getenv("KEYCLOAK_SERVER_URL")
	realm := os.Getenv("KEYCLOAK_REALM")
	clientID := os.Getenv("KEYCLOAK_CLIENT_ID")
	if serverURL == "" || realm == "" || clientID == "" {
		return nil, fmt.Errorf("keycloak env missing, check .env file")
	}

	return &KeycloakProvider{
		client:       gocloak.NewClient(serverURL),
		realm:        realm,
		clientID:     clientID,
		clientSecret: os.Getenv("KEYCLOAK_CLIENT_SECRET"),
		adminUser:    os.Getenv("KEYCLOAK_ADMIN_USER"),
		adminPass:    os.Getenv("KEYCLOAK_ADMIN_PASSWORD"),
	}, nil
}

func (p *KeycloakProvider) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	jwt, err := p.client.Login(ctx, p.clientID, p.clientSecret, p.realm, username, password)
	if err != nil {
		return nil, fmt.Errorf("keycloak login: %w", err)
	}
	return &TokenPair{AccessToken: jwt.AccessToken, RefreshToken: jwt.RefreshToken}, nil
}

func (p *KeycloakProvider) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	jwt, err := p.client.RefreshToken(ctx, refreshToken, p.clientID, p.clientSecret, p.realm)
	if err != nil {
		return nil, fmt.Errorf("keycloak refresh: %w", err)
	}
	return &TokenPair{AccessToken: jwt.AccessToken, RefreshToken: jwt.RefreshToken}, nil
}

func (p *KeycloakProvider) Introspect(ctx context.Context, accessToken string) (bool, error) {
	result, err := p.client.RetrospectToken(ctx, accessToken, p.clientID, p.clientSecret, p.realm)
	if err != nil {
		return false, fmt.Errorf("keycloak introspect: %w", err)
	}
	return result.Active != nil && *result.Active, nil
}

func (p *KeycloakProvider) adminToken(ctx context.Context) (string, error) {
	jwt, err := p.client.LoginAdmin(ctx, p.adminUser, p.adminPass, "master")
	if err != nil {
		return "", fmt.Errorf("keycloak admin login: %w", err)
	}
	return jwt.AccessToken, nil
}

// CreateUser registers the account at Keycloak: enabled, email verified,
// password set non-temporary and required actions cleared so the user can
// log in immediately. Returns the new Keycloak user id.
func (p *KeycloakProvider) CreateUser(ctx context.Context, reg Registration) (string, error) {
	token, err := p.adminToken(ctx)
	if err != nil {
		return "", err
	}

	attributes := map[string][]string{
		"faculty":  {reg.Faculty},
		"birthday": {reg.Birthday},
	}
	userID, err := p.client.CreateUser(ctx, token, p.realm, gocloak.User{
		Username:      gocloak.StringP(reg.Username),
		Email:         gocloak.StringP(reg.Email),
		FirstName:     gocloak.StringP(reg.FirstName),
		LastName:      gocloak.StringP(reg.LastName),
		Enabled:       gocloak.BoolP(true),
		EmailVerified: gocloak.BoolP(true),
		Attributes:    &attributes,
	})
	if err != nil {
		return "", fmt.Errorf("keycloak create user: %w", err)
	}

	if err := p.client.SetPassword(ctx, token, userID, p.realm, reg.Password, false); err != nil {
		return "", fmt.Errorf("keycloak set password: %w", err)
	}

	err = p.client.UpdateUser(ctx, token, p.realm, gocloak.User{
		ID:              gocloak.StringP(userID),
		RequiredActions: &[]string{},
	})
	if err != nil {
		return "", fmt.Errorf("keycloak clear required actions: %w", err)
	}

	return userID, nil
}

func (p *KeycloakProvider) ListUsers(ctx context.Context) ([]Userinfo, error) {
	token, err := p.adminToken(ctx)
	if err != nil {
		return nil, err
	}

	users, err := p.client.GetUsers(ctx, token, p.realm, gocloak.GetUsersParams{})
	if err != nil {
		return nil, fmt.Errorf("keycloak list users: %w", err)
	}

	infos := make([]Userinfo, 0, len(users))
	for _, u := range users {
		info := Userinfo{}
		if u.ID != nil {
			info.Sub = *u.ID
		}
		if u.Username != nil {
			info.PreferredUsername = *u.Username
		}
		if u.Email != nil {
			info.Email = *u.Email
		}
		infos = append(infos, info)
	}
	return infos, nil
}
