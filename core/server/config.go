package server

// Config holds configuration for the local status API.
type Config struct {
	// Listen is the address the status API binds to. The default stays on
	// loopback; nothing served here is meant for the open internet.
	Listen string `mapstructure:"listen" default:"127.0.0.1:8391"`
	// ApiKey is the secret key required to access the API. Empty disables
	// the check.
	ApiKey string `mapstructure:"api_key" default:""`
}
