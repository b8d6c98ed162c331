package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/admin"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/apikeys"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/auth"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/config"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/database"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/importexport"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/ingredients"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/media"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/models"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/recipes"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/tags"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/joseluisbezerra/recipe-api/api/swagger"
)

// @title Recipe API
// @version 1.0
// @description A recipe management API where users keep personal collections of recipes, tags and ingredients.

// @contact.name Recipe API Support
// @contact.url https://github.com/joseluisbezerra/recipe-api

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token or API key. Format: "Bearer {token}"

func main() {
	// Load .env if present, real environment wins
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded settings from .env")
	}

	cfg := config.Load()

	// Connect to database
	if err := database.Connect(cfg.DBDriver, cfg.DBDSN); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run auto-migrations
	if err := models.AutoMigrate(database.GetDB()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Create default superuser if none exists
	if err := ensureSuperuserExists(cfg); err != nil {
		log.Fatalf("Failed to ensure superuser exists: %v", err)
	}

	// Image storage for recipe uploads
	storage, err := media.NewStorage(cfg.MediaRoot, "recipes")
	if err != nil {
		log.Fatalf("Failed to set up media storage: %v", err)
	}
	recipeMediaURL := media.URLPath(cfg.MediaURLPrefix, "recipes")

	// Set up Gin router
	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"service": "recipe-api",
			})
		})

		// Auth routes (public)
		authHandler := auth.NewHandler(database.GetDB())
		authHandler.RegisterRoutes(api.Group("/auth"))

		// Combined auth middleware (accepts JWT or API key)
		combinedAuth := apikeys.CombinedAuthMiddleware(database.GetDB())

		// API keys routes (JWT only - need to be logged in to manage keys)
		apiKeysHandler := apikeys.NewHandler(database.GetDB())
		apiKeysHandler.RegisterRoutes(api.Group("", auth.AuthMiddleware()))

		// Tags routes (protected - accepts JWT or API key)
		tagsHandler := tags.NewHandler(database.GetDB())
		tagsHandler.RegisterRoutes(api.Group("", combinedAuth))

		// Ingredients routes (protected - accepts JWT or API key)
		ingredientsHandler := ingredients.NewHandler(database.GetDB())
		ingredientsHandler.RegisterRoutes(api.Group("", combinedAuth))

		// Recipes routes (protected - accepts JWT or API key)
		recipesHandler := recipes.NewHandler(database.GetDB(), storage, recipeMediaURL)
		recipesHandler.RegisterRoutes(api.Group("", combinedAuth))

		// Import/Export routes under /recipes (protected)
		importExportHandler := importexport.NewHandler(database.GetDB())
		importExportHandler.RegisterRoutes(api.Group("/recipes", combinedAuth))

		// Admin routes (JWT only, staff required)
		adminHandler := admin.NewHandler(database.GetDB())
		adminGroup := api.Group("/admin")
		adminGroup.Use(auth.AuthMiddleware(), auth.RequireStaff())
		adminHandler.RegisterRoutes(adminGroup)
	}

	// Uploaded recipe images
	r.Static(recipeMediaURL, storage.Root())

	log.Printf("Starting recipe-api server on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// ensureSuperuserExists creates a default superuser from the configured
// admin credentials if the database has none. The account is also staff
// so it can use the admin API immediately.
func ensureSuperuserExists(cfg config.Config) error {
	db := database.GetDB()

	var count int64
	if err := db.Model(&models.User{}).Where("is_superuser = ?", true).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	hashedPassword, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	superuser := models.User{
		Email:        auth.NormalizeEmail(cfg.AdminEmail),
		Name:         "Admin",
		PasswordHash: hashedPassword,
		IsStaff:      true,
		IsSuperuser:  true,
	}

	if err := db.Create(&superuser).Error; err != nil {
		return err
	}

	log.Printf("Created default superuser: %s", superuser.Email)
	return nil
}
