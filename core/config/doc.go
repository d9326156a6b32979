// Package config provides configuration management for the toolbelt.
//
// It utilizes Viper for loading configuration from environment variables
// and an optional .env file.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Archipelago: location of the Archipelago checkout and its interpreter
//   - Worlds: manifest path and release cache TTL
//   - GitHub: API endpoints, token, timeouts
//   - Status: local status API listen address and key
//   - Expose: TCP proxy listeners and TLS material
//   - Tracker: docker compose stack for the tracker
//   - Storage: S3/MinIO credentials and bucket settings for the seed archive
//   - Log: Logging level and format
//
// Environment variables map onto nested keys with underscores, so
// GITHUB_TOKEN sets github.token and STORAGE_ENDPOINT sets storage.endpoint.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Worlds.Manifest)
package config
