package config

import "os"

// Config holds the server settings read from the environment.
type Config struct {
	Port           string
	DBDriver       string
	DBDSN          string
	MediaRoot      string
	MediaURLPrefix string
	AdminEmail     string
	AdminPassword  string
}

// Load reads settings from the environment, falling back to defaults
// that suit local development.
func Load() Config {
	return Config{
		Port:           getEnv("PORT", "8080"),
		DBDriver:       getEnv("RECIPE_API_DB_DRIVER", "sqlite"),
		DBDSN:          getEnv("RECIPE_API_DB_DSN", "recipe.db"),
		MediaRoot:      getEnv("RECIPE_API_MEDIA_ROOT", "media"),
		MediaURLPrefix: getEnv("RECIPE_API_MEDIA_URL", "/media"),
		AdminEmail:     getEnv("RECIPE_API_ADMIN_EMAIL", "admin@recipe.local"),
		AdminPassword:  getEnv("RECIPE_API_ADMIN_PASSWORD", "changeme"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
