package domain

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetUpstreamConfig() *UpstreamConfig
	GetServerConfig() *ServerConfig
	Validate() error
	IsProduction() bool
}
