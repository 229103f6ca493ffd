// internal/services/authorization_service.go
package services

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rafat/cronosflow/internal/apperrors"
	"github.com/rafat/cronosflow/internal/models"
)

// Capability names one privileged ledger operation. Every mutating endpoint
// checks a capability before touching state; denial is an explicit
// authorization error, never a silent no-op.
type Capability string

const (
	CapAssetRegister    Capability = "asset:register"
	CapAssetLink        Capability = "asset:link"
	CapAssetActivate    Capability = "asset:activate"
	CapAssetPause       Capability = "asset:pause"
	CapAssetReview      Capability = "asset:review"
	CapAssetLiquidate   Capability = "asset:liquidate"
	CapPaymentRecord    Capability = "payment:record"
	CapDefaultCheck     Capability = "default:check"
	CapVaultDeposit     Capability = "vault:deposit"
	CapVaultCommit      Capability = "vault:commit"
	CapVaultDeploy      Capability = "vault:deploy"
	CapVaultFees        Capability = "vault:fees"
	CapSharesMint       Capability = "shares:mint"
	CapSharesBurn       Capability = "shares:burn"
	CapSharesTransfer   Capability = "shares:transfer"
	CapYieldClaim       Capability = "yield:claim"
	CapComplianceManage Capability = "compliance:manage"
)

// rolePolicy maps each role to the set of capabilities it grants. Admin is
// handled separately and holds every capability.
var rolePolicy = map[string][]Capability{
	models.RoleOriginator: {
		CapAssetRegister,
		CapAssetLink,
		CapVaultDeposit,
	},
	models.RoleServicer: {
		CapPaymentRecord,
		CapDefaultCheck,
		CapVaultDeposit,
		CapVaultCommit,
	},
	models.RoleManager: {
		CapVaultDeploy,
		CapVaultFees,
		CapSharesMint,
		CapSharesBurn,
	},
	models.RoleInvestor: {
		CapYieldClaim,
		CapSharesTransfer,
	},
}

type AuthorizationService struct {
	db *gorm.DB
}

func NewAuthorizationService(db *gorm.DB) *AuthorizationService {
	return &AuthorizationService{db: db}
}

// Identity loads the caller's identity row, so role changes take effect
// without waiting for token expiry.
func (s *AuthorizationService) Identity(identityID uuid.UUID) (*models.Identity, error) {
	var identity models.Identity
	if err := s.db.First(&identity, "id = ?", identityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("identity %s not found", identityID)
		}
		return nil, apperrors.Internal("failed to load identity", err)
	}
	return &identity, nil
}

// Require returns an authorization error unless the identity holds a role
// granting the capability and is not suspended.
func (s *AuthorizationService) Require(identityID uuid.UUID, capability Capability) (*models.Identity, error) {
	identity, err := s.Identity(identityID)
	if err != nil {
		return nil, err
	}

	if identity.Status != models.IdentityStatusActive {
		return nil, apperrors.Authorization("identity is suspended")
	}

	if identity.HasRole(models.RoleAdmin) {
		return identity, nil
	}

	for _, role := range identity.Roles {
		for _, granted := range rolePolicy[role] {
			if granted == capability {
				return identity, nil
			}
		}
	}

	return nil, apperrors.Authorization("missing capability %s", capability)
}
