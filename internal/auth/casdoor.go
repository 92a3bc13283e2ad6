package auth

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
)

// CasdoorConfig holds the application credentials registered in Casdoor
type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Certificate  string
	Organization string
	Application  string
}

// CasdoorProvider verifies tokens issued by Casdoor using the app certificate
type CasdoorProvider struct {
	client *casdoorsdk.Client
}

func NewCasdoorProvider(cfg CasdoorConfig) *CasdoorProvider {
	return &CasdoorProvider{
		client: casdoorsdk.NewClient(
			cfg.Endpoint,
			cfg.ClientID,
			cfg.ClientSecret,
			cfg.Certificate,
			cfg.Organization,
			cfg.Application,
		),
	}
}

func (p *CasdoorProvider) Authenticate(ctx context.Context, token string) (models.Actor, error) {
	claims, err := p.client.ParseJwtToken(token)
	if err != nil {
		return models.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user := claims.User
	userID := user.Id
	if userID == "" {
		userID = user.Name
	}
	if userID == "" {
		return models.Actor{}, ErrInvalidToken
	}

	return models.Actor{
		UserID: userID,
		Name:   user.DisplayName,
		Role:   casdoorRole(user.IsAdmin, user.Tag, roleNames(user.Roles)),
	}, nil
}

func roleNames(roles []*casdoorsdk.Role) []string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		if r != nil {
			names = append(names, r.Name)
		}
	}
	return names
}

// casdoorRole maps Casdoor's admin flag, user tag and role names onto the
// service roles. The strongest matching role wins.
func casdoorRole(isAdmin bool, tag string, roles []string) models.UserRole {
	if isAdmin {
		return models.RoleAdmin
	}
	best := models.ParseRole(tag)
	for _, name := range roles {
		switch models.ParseRole(name) {
		case models.RoleAdmin:
			return models.RoleAdmin
		case models.RoleTeacher:
			best = models.RoleTeacher
		}
	}
	return best
}
