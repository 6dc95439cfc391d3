// Package config provides centralized configuration management for the
// OI spurts tracker.
//
// # Configuration Sources
//
// Configuration is layered, later sources overriding earlier ones:
//
//	1. Default() values
//	2. A YAML file (OISPURTS_CONFIG_FILE, or config.yaml / configs/config.yaml)
//	3. A .env file in the working directory, if present
//	4. Environment variables
//
// # Environment Variables
//
// All environment variables follow the pattern OISPURTS_<SECTION>_<FIELD>:
//
//	OISPURTS_SERVER_PORT=8080
//	OISPURTS_SCHEDULE_START=10:00
//	OISPURTS_SCHEDULE_INTERVAL=20m
//	OISPURTS_BOT_TOKEN=123456:ABC...
//	OISPURTS_LOGGING_LEVEL=debug
//
// # Path Management
//
// Relative directories resolve against Paths.BaseDir, which defaults to
// the directory holding the executable:
//
//	paths, err := config.ResolvePaths(cfg.Paths)
//	if err != nil {
//	    return err
//	}
//	snapshots := paths.ProcessedDir
package config
