// internal/handlers/handlers_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rafat/cronosflow/internal/config"
	"github.com/rafat/cronosflow/internal/middleware"
	"github.com/rafat/cronosflow/internal/models"
	"github.com/rafat/cronosflow/internal/services"
	"github.com/rafat/cronosflow/internal/utils"
)

type APITestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine
}

func (s *APITestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret")

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(s.T().Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	s.Require().NoError(db.AutoMigrate(
		&models.Identity{},
		&models.WhitelistEntry{},
		&models.Asset{},
		&models.LeaseTerms{},
		&models.CashflowState{},
		&models.PaymentPeriod{},
		&models.Vault{},
		&models.VaultPosition{},
		&models.ShareLedger{},
		&models.ShareBalance{},
		&models.VaultTransfer{},
		&models.Notification{},
	))
	s.db = db

	cfg := &config.Config{
		JWT:    config.JWTConfig{SecretKey: "test-secret", AccessTokenTTL: 1, RefreshTokenTTL: 1},
		Ledger: config.LedgerConfig{DefaultFeeBps: 250, TimeUnitSeconds: 86400, MaxFeeBps: 2000},
	}

	locks := services.NewAssetLocks()
	notifications := services.NewNotificationService(db)
	cashflow := services.NewCashflowService(db)
	vaults := services.NewVaultService(db, cashflow, locks)
	shares := services.NewSharesService(db, vaults, locks)
	registry := services.NewRegistryService(db, cfg, cashflow, vaults, shares, notifications, locks)
	compliance := services.NewComplianceService(db)
	authz := services.NewAuthorizationService(db)
	auth := services.NewAuthService(db, cfg)

	authHandler := NewAuthHandler(auth)
	assetHandler := NewAssetHandler(registry, authz)
	complianceHandler := NewComplianceHandler(compliance, authz)

	r := gin.New()
	r.POST("/auth/register", authHandler.Register)
	r.POST("/auth/login", authHandler.Login)
	r.GET("/auth/me", middleware.AuthRequired(), authHandler.GetProfile)

	protected := r.Group("", middleware.AuthRequired())
	protected.POST("/assets", assetHandler.Register)
	protected.GET("/assets/:id", assetHandler.GetAsset)
	protected.POST("/compliance/kyc/:identityId/approve", complianceHandler.ApproveKYC)

	s.router = r
}

func (s *APITestSuite) request(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *APITestSuite) register(username, role string) (string, map[string]interface{}) {
	w := s.request("POST", "/auth/register", "", map[string]interface{}{
		"username": username,
		"email":    username + "@example.com",
		"password": "StrongPass1!",
		"role":     role,
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var response map[string]interface{}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	return data["token"].(string), data["identity"].(map[string]interface{})
}

func (s *APITestSuite) adminToken() string {
	admin := &models.Identity{
		Username:  "admin",
		Email:     "admin@example.com",
		Roles:     pq.StringArray{models.RoleAdmin},
		KYCStatus: models.KYCStatusApproved,
		Status:    models.IdentityStatusActive,
	}
	s.Require().NoError(admin.SetPassword("StrongPass1!"))
	s.Require().NoError(s.db.Create(admin).Error)

	token, err := utils.GenerateJWT(admin.ID, admin.Username, admin.Roles, string(admin.KYCStatus), 1)
	s.Require().NoError(err)
	return token
}

func (s *APITestSuite) TestRegisterLoginAndProfile() {
	token, _ := s.register("alice", "originator")

	w := s.request("POST", "/auth/login", "", map[string]interface{}{
		"email":    "alice@example.com",
		"password": "StrongPass1!",
	})
	assert.Equal(s.T(), http.StatusOK, w.Code)

	w = s.request("GET", "/auth/me", token, nil)
	assert.Equal(s.T(), http.StatusOK, w.Code)

	var response map[string]interface{}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(s.T(), response["success"].(bool))

	// No token, no profile.
	w = s.request("GET", "/auth/me", "", nil)
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
}

func (s *APITestSuite) TestAssetRegistrationRequiresKYC() {
	token, identity := s.register("bob", "originator")

	body := map[string]interface{}{
		"asset_type":    "residential_lease",
		"valuation":     "1000000",
		"metadata_hash": utils.HashString("deed"),
	}

	// Fresh registrations are KYC-pending, so asset creation is denied.
	w := s.request("POST", "/assets", token, body)
	assert.Equal(s.T(), http.StatusForbidden, w.Code, w.Body.String())

	// An admin approves the originator, after which creation succeeds.
	admin := s.adminToken()
	w = s.request("POST", "/compliance/kyc/"+identity["id"].(string)+"/approve", admin, nil)
	assert.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())

	w = s.request("POST", "/assets", token, body)
	assert.Equal(s.T(), http.StatusCreated, w.Code, w.Body.String())

	var response map[string]interface{}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	assert.Equal(s.T(), "registered", data["status"].(string))

	// And the asset is readable.
	w = s.request("GET", "/assets/"+data["id"].(string), token, nil)
	assert.Equal(s.T(), http.StatusOK, w.Code)
}

func (s *APITestSuite) TestAssetRegistrationRequiresRole() {
	token, _ := s.register("carol", "investor")

	w := s.request("POST", "/assets", token, map[string]interface{}{
		"asset_type":    "residential_lease",
		"valuation":     "1000000",
		"metadata_hash": utils.HashString("deed"),
	})
	assert.Equal(s.T(), http.StatusForbidden, w.Code)
}

func (s *APITestSuite) TestComplianceRequiresAdmin() {
	token, identity := s.register("dave", "originator")

	w := s.request("POST", "/compliance/kyc/"+identity["id"].(string)+"/approve", token, nil)
	assert.Equal(s.T(), http.StatusForbidden, w.Code)
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}
