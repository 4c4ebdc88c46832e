package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/ratelimit"
)

// CatalogProducts is everything the product routes need from storage.
type CatalogProducts interface {
	ProductStore
	ProductBatch
	ProductCounter
}

// Accounts is everything the user routes need from storage.
type Accounts interface {
	UserStore
	AddressStore
	WishlistStore
	UserLister
}

type Tokens interface {
	TokenIssuer
	middleware.TokenParser
}

type RecommendationSource interface {
	Recommender
	BestSellerSource
}

type Deps struct {
	Products    CatalogProducts
	Categories  CategoryStore
	Users       Accounts
	Discounts   DiscountStore
	Campaigns   CampaignStore
	Engine      DiscountEngine
	Carts       CartService
	Orders      OrderService
	Invoices    InvoiceService
	Recommender RecommendationSource
	Tokens      Tokens
	Cookie      CookieSettings
	Limiter     *ratelimit.Limiter
	Metrics     *metrics.Metrics
	MetricsView http.Handler
	Health      Pinger
	UploadDir   string
}

// RegisterRoutes mounts every route on r.
func RegisterRoutes(r *gin.Engine, d Deps) {
	requireUser := middleware.Authenticate(d.Tokens, d.Cookie.Name)
	requireAdmin := []gin.HandlerFunc{requireUser, middleware.AdminOnly()}
	optionalUser := middleware.OptionalAuth(d.Tokens, d.Cookie.Name)

	r.GET("/healthz", Healthz(d.Health))
	if d.MetricsView != nil {
		r.GET("/metrics", gin.WrapH(d.MetricsView))
	}
	r.Static("/uploads/products", filepath.Join(d.UploadDir, "products"))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		limited := middleware.AuthRateLimit(d.Limiter, d.Metrics)
		authGroup.POST("/register", limited, Register(d.Users, d.Tokens, d.Cookie))
		authGroup.POST("/login", limited, Login(d.Users, d.Tokens, d.Cookie))
		authGroup.POST("/logout", Logout(d.Cookie))
		authGroup.GET("/me", requireUser, Me(d.Users))
	}

	users := api.Group("/users", requireUser)
	{
		users.GET("/addresses", ListAddresses(d.Users))
		users.POST("/addresses", CreateAddress(d.Users))
		users.PUT("/addresses/:id", UpdateAddress(d.Users))
		users.DELETE("/addresses/:id", DeleteAddress(d.Users))
	}

	products := api.Group("/products")
	{
		products.GET("", ListProducts(d.Products, false))
		products.GET("/best-sellers", BestSellers(d.Recommender))
		products.GET("/:id", GetProduct(d.Products))
		products.POST("", append(requireAdmin, CreateProduct(d.Products, d.Categories, d.UploadDir))...)
		products.PUT("/:id", append(requireAdmin, UpdateProduct(d.Products, d.Categories, d.UploadDir))...)
		products.DELETE("/:id", append(requireAdmin, DeleteProduct(d.Products, d.UploadDir))...)
	}

	categories := api.Group("/categories")
	{
		categories.GET("", ListCategories(d.Categories, true))
		categories.POST("", append(requireAdmin, CreateCategory(d.Categories))...)
		categories.PUT("/:id", append(requireAdmin, UpdateCategory(d.Categories))...)
		categories.DELETE("/:id", append(requireAdmin, DeleteCategory(d.Categories, d.Products))...)
	}

	cart := api.Group("/cart", requireUser)
	{
		cart.GET("", GetCart(d.Carts))
		cart.POST("/add", AddToCart(d.Carts))
		cart.PUT("/update", UpdateCartItem(d.Carts))
		cart.DELETE("/item", RemoveCartItem(d.Carts))
		cart.DELETE("", ClearCart(d.Carts))
		cart.POST("/quote", QuoteCart(d.Carts))
	}

	orders := api.Group("/orders", requireUser)
	{
		orders.POST("", CreateOrder(d.Orders))
		orders.GET("/mine", ListMyOrders(d.Orders))
		orders.GET("/:id", GetOrder(d.Orders))
		orders.PUT("/:id/cancel", CancelOrder(d.Orders))
		orders.POST("/:id/invoice", GenerateInvoice(d.Invoices))
		orders.GET("", middleware.AdminOnly(), ListOrders(d.Orders))
		orders.PUT("/:id/status", middleware.AdminOnly(), UpdateOrderStatus(d.Orders))
		orders.DELETE("/:id", middleware.AdminOnly(), DeleteOrder(d.Orders))
	}

	invoices := api.Group("/invoices", requireUser)
	{
		invoices.GET("", ListMyInvoices(d.Invoices))
		invoices.GET("/:id/download", DownloadInvoice(d.Invoices))
	}

	discounts := api.Group("/discounts")
	{
		discounts.POST("/validate", requireUser, ValidateDiscount(d.Engine, d.Metrics))
		discounts.POST("/apply-category", ApplyCategoryDiscounts(d.Engine, d.Products))
		discounts.GET("", append(requireAdmin, ListDiscounts(d.Discounts))...)
		discounts.POST("", append(requireAdmin, CreateDiscount(d.Discounts, d.Categories))...)
		discounts.PUT("/:id", append(requireAdmin, UpdateDiscount(d.Discounts, d.Categories))...)
		discounts.DELETE("/:id", append(requireAdmin, DeleteDiscount(d.Discounts))...)
	}

	wishlist := api.Group("/wishlist", requireUser)
	{
		wishlist.GET("", GetWishlist(d.Users, d.Products))
		wishlist.POST("", AddToWishlist(d.Users, d.Products))
		wishlist.DELETE("/:productId", RemoveFromWishlist(d.Users))
	}

	api.GET("/recommendations", optionalUser, Recommendations(d.Recommender))

	campaigns := api.Group("/campaigns")
	{
		campaigns.GET("", ListCampaigns(d.Campaigns, d.Products))
		campaigns.POST("", append(requireAdmin, CreateCampaign(d.Campaigns))...)
		campaigns.DELETE("/:id", append(requireAdmin, DeleteCampaign(d.Campaigns))...)
	}

	admin := api.Group("/admin", requireAdmin...)
	{
		admin.GET("/users", ListUsers(d.Users))
		admin.GET("/products", ListProducts(d.Products, true))
		admin.GET("/categories", ListCategories(d.Categories, false))
	}
}
