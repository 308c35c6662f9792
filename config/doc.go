// Package config loads service configuration from YAML files, .env files and
// environment variables using viper and godotenv.
//
// Files are resolved in this order unless given explicitly: ./config.yml,
// ./config/<service>.yml, ./config/config.yml. Environment variables carrying
// the service prefix override file values, so ANYHTTP_TIMEOUTS_CONNECT=2s sets
// timeouts.connect for the "anyhttp" service.
//
// # Usage
//
//	var cfg backend.Config
//	err := config.LoadConfig("anyhttp", &cfg, config.WithConfigFile("client.yml"))
package config
