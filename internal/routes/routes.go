package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/config"
	"github.com/example/bazaar/internal/handlers"
	"github.com/example/bazaar/internal/middleware"
	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/services"
)

// defaultRates maps non-base currencies to their value in the base currency.
// Replaced by a live provider when one is wired in.
var defaultRates = map[string]decimal.Decimal{
	"USD": decimal.RequireFromString("36.00"),
	"EUR": decimal.RequireFromString("39.50"),
	"JPY": decimal.RequireFromString("0.24"),
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	converter := services.NewCurrencyConverter(services.NewStaticRateProvider(defaultRates), cfg.BaseCurrency)
	taxCalculator := services.FlatTaxCalculator{Rate: cfg.TaxRate}

	tokenService := services.NewTokenService(db, cfg.RefreshTokenTTL)
	oauthService := services.NewOAuthService(db, services.OAuthConfig{
		GoogleClientID:     cfg.GoogleClientID,
		GoogleClientSecret: cfg.GoogleClientSecret,
		GitHubClientID:     cfg.GitHubClientID,
		GitHubClientSecret: cfg.GitHubClientSecret,
		CallbackBaseURL:    cfg.CallbackBaseURL,
	})
	cartService := services.NewCartService(db)
	checkoutService := services.NewCheckoutService(db, converter, taxCalculator)
	fulfillmentService := services.NewFulfillmentService(db)

	authHandler := handlers.NewAuthHandler(db, cfg, tokenService, oauthService)
	productHandler := handlers.NewProductHandler(db)
	cartHandler := handlers.NewCartHandler(cartService)
	orderHandler := handlers.NewOrderHandler(db, checkoutService)
	sellerHandler := handlers.NewSellerHandler(fulfillmentService)
	adminHandler := handlers.NewAdminHandler(db, tokenService)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/logout", authHandler.Logout)
	auth.Get("/oauth/:provider", authHandler.OAuthBegin)
	auth.Get("/oauth/:provider/callback", authHandler.OAuthCallback)

	// Public catalog
	products := api.Group("/products")
	products.Get("/", productHandler.ListProducts)
	products.Get("/:id", productHandler.GetProduct)

	// Buyer routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	cart := protected.Group("/cart")
	cart.Get("/", cartHandler.GetCart)
	cart.Post("/", cartHandler.AddToCart)
	cart.Put("/:id", cartHandler.SetQuantity)
	cart.Delete("/:id", cartHandler.RemoveFromCart)

	protected.Post("/orders/checkout", orderHandler.Checkout)
	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/:id", orderHandler.GetOrder)

	// Seller routes
	seller := protected.Group("/seller", middleware.RequireRole(models.RoleSeller, models.RoleAdmin))
	seller.Get("/products", productHandler.ListMyProducts)
	seller.Post("/products", productHandler.CreateProduct)
	seller.Put("/products/:id", productHandler.UpdateProduct)
	seller.Delete("/products/:id", productHandler.DeleteProduct)

	seller.Get("/items", sellerHandler.ListItems)
	seller.Put("/items/bulk", sellerHandler.BulkUpdateStatus)
	seller.Post("/items/bulk-cancel", sellerHandler.BulkCancel)
	seller.Put("/items/:id", sellerHandler.UpdateItemStatus)
	seller.Post("/items/:id/cancel", sellerHandler.CancelItem)

	// Admin routes
	admin := protected.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	admin.Get("/users", adminHandler.ListUsers)
	admin.Post("/users/:id/approve-seller", adminHandler.ApproveSeller)
	admin.Post("/users/:id/revoke-sessions", adminHandler.RevokeUserSessions)
}
