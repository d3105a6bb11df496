package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/bazaar/internal/models"
)

// setupTestDB creates an in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A second pooled connection would see its own empty :memory: database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.ExternalLogin{},
		&models.RefreshToken{},
		&models.OAuthState{},
		&models.Product{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
	)
	require.NoError(t, err)

	return db
}

func createTestUser(t *testing.T, db *gorm.DB, role models.Role) *models.User {
	t.Helper()
	hash := "$2a$10$0123456789012345678901"
	user := &models.User{
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: &hash,
		DisplayName:  "Test User",
		Role:         role,
		IsVerified:   true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestProduct(t *testing.T, db *gorm.DB, sellerID uuid.UUID, price string, currency string, stock int) *models.Product {
	t.Helper()
	amount, err := decimal.NewFromString(price)
	require.NoError(t, err)
	product := &models.Product{
		SellerID:     sellerID,
		Name:         "Product " + uuid.NewString()[:8],
		ImageURL:     "https://cdn.example.com/p.jpg",
		Price:        amount,
		BaseCurrency: currency,
		Stock:        stock,
		IsActive:     true,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}
