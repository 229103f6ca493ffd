// internal/models/identity.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// Identity is an authenticated caller: an originator, servicer, investor or
// admin. Roles are a plain set of strings consulted by the authorization
// policy; KYC status gates asset registration and share ownership.
type Identity struct {
	BaseModel
	Username      string         `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Email         string         `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash  string         `json:"-" gorm:"size:255;not null"`
	Roles         pq.StringArray `json:"roles" gorm:"type:text[]"`
	KYCStatus     KYCStatus      `json:"kyc_status" gorm:"type:varchar(20);default:'pending';index"`
	Status        IdentityStatus `json:"status" gorm:"type:varchar(20);default:'active'"`
	ProfileData   JSONB          `json:"profile_data" gorm:"type:jsonb"`
	KYCApprovedAt *time.Time     `json:"kyc_approved_at"`
	KYCApprovedBy *uuid.UUID     `json:"kyc_approved_by" gorm:"type:uuid"`
	LastLoginAt   *time.Time     `json:"last_login_at"`
}

func (i *Identity) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	i.PasswordHash = string(hashedPassword)
	return nil
}

func (i *Identity) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(i.PasswordHash), []byte(password))
}

func (i *Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// WhitelistEntry records a holder approved to own shares of one asset.
// Whitelisting is asset-level compliance state, separate from KYC.
type WhitelistEntry struct {
	BaseModel
	AssetID    uuid.UUID `json:"asset_id" gorm:"type:uuid;not null;uniqueIndex:idx_whitelist_asset_holder"`
	HolderID   uuid.UUID `json:"holder_id" gorm:"type:uuid;not null;uniqueIndex:idx_whitelist_asset_holder"`
	ApprovedBy uuid.UUID `json:"approved_by" gorm:"type:uuid;not null"`
}
