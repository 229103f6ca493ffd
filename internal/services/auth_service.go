// internal/services/auth_service.go
package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/rafat/cronosflow/internal/apperrors"
	"github.com/rafat/cronosflow/internal/config"
	"github.com/rafat/cronosflow/internal/models"
	"github.com/rafat/cronosflow/internal/utils"
)

type AuthService struct {
	db     *gorm.DB
	config *config.Config
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,strong_password"`
	Role     string `json:"role" validate:"omitempty,oneof=originator servicer manager investor"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Identity     *models.Identity `json:"identity"`
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
}

func NewAuthService(db *gorm.DB, config *config.Config) *AuthService {
	return &AuthService{db: db, config: config}
}

// Register creates a new identity. The admin role can never be
// self-assigned; it is granted out of band.
func (s *AuthService) Register(req *RegisterRequest) (*AuthResponse, error) {
	var existing models.Identity
	err := s.db.Where("username = ? OR email = ?", req.Username, req.Email).First(&existing).Error
	if err == nil {
		return nil, apperrors.AlreadyProcessed("username or email is already registered")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Internal("failed to check existing identity", err)
	}

	role := req.Role
	if role == "" {
		role = models.RoleInvestor
	}

	identity := &models.Identity{
		Username:  req.Username,
		Email:     req.Email,
		Roles:     pq.StringArray{role},
		KYCStatus: models.KYCStatusPending,
		Status:    models.IdentityStatusActive,
	}
	if err := identity.SetPassword(req.Password); err != nil {
		return nil, apperrors.Internal("failed to hash password", err)
	}

	if err := s.db.Create(identity).Error; err != nil {
		return nil, apperrors.Internal("failed to create identity", err)
	}

	return s.issueTokens(identity)
}

func (s *AuthService) Login(req *LoginRequest) (*AuthResponse, error) {
	var identity models.Identity
	if err := s.db.Where("email = ?", req.Email).First(&identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Authorization("invalid credentials")
		}
		return nil, apperrors.Internal("failed to load identity", err)
	}

	if err := identity.CheckPassword(req.Password); err != nil {
		return nil, apperrors.Authorization("invalid credentials")
	}
	if identity.Status != models.IdentityStatusActive {
		return nil, apperrors.Authorization("identity is suspended")
	}

	now := time.Now()
	identity.LastLoginAt = &now
	s.db.Save(&identity)

	return s.issueTokens(&identity)
}

func (s *AuthService) GetProfile(identityID uuid.UUID) (*models.Identity, error) {
	var identity models.Identity
	if err := s.db.First(&identity, "id = ?", identityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("identity %s not found", identityID)
		}
		return nil, apperrors.Internal("failed to load identity", err)
	}
	return &identity, nil
}

// AssignRoles replaces an identity's role set. Admin only.
func (s *AuthService) AssignRoles(identityID uuid.UUID, roles []string) (*models.Identity, error) {
	valid := map[string]bool{
		models.RoleAdmin:      true,
		models.RoleOriginator: true,
		models.RoleServicer:   true,
		models.RoleManager:    true,
		models.RoleInvestor:   true,
	}
	for _, role := range roles {
		if !valid[role] {
			return nil, apperrors.Validation("unknown role %q", role)
		}
	}

	identity, err := s.GetProfile(identityID)
	if err != nil {
		return nil, err
	}

	identity.Roles = pq.StringArray(roles)
	if err := s.db.Save(identity).Error; err != nil {
		return nil, apperrors.Internal("failed to persist identity", err)
	}
	return identity, nil
}

func (s *AuthService) issueTokens(identity *models.Identity) (*AuthResponse, error) {
	accessToken, err := utils.GenerateJWT(identity.ID, identity.Username, identity.Roles, string(identity.KYCStatus), s.config.JWT.AccessTokenTTL)
	if err != nil {
		return nil, apperrors.Internal("failed to generate access token", err)
	}

	refreshToken, err := utils.GenerateRefreshToken(identity.ID, s.config.JWT.RefreshTokenTTL)
	if err != nil {
		return nil, apperrors.Internal("failed to generate refresh token", err)
	}

	return &AuthResponse{
		Identity:     identity,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
