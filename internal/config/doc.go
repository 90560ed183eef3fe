// Package config loads the server and CLI configuration.
//
// Configuration is assembled from the following sources, later ones winning:
//
//	1. Default() values
//	2. A YAML file (BORSA_CONFIG_FILE, config.yaml or configs/config.yaml)
//	3. Environment variables, optionally seeded from a .env file
//
// Environment variables are namespaced with BORSA_ and follow the struct
// layout, for example:
//
//	BORSA_SERVER_PORT=8080
//	BORSA_DATABASE_DRIVER=mysql
//	BORSA_DATABASE_DSN=user:pass@tcp(localhost:3306)/borsa?parseTime=true
//	BORSA_LOCK_BACKEND=redis
//	BORSA_LOCK_REDIS_ADDR=localhost:6379
//	BORSA_INGESTION_HEADER_MODE=auto
//	BORSA_SCHEDULER_ENABLED=true
//
// Load validates the result and returns an error describing the first
// invalid setting.
package config
