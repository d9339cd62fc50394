// Package config handles configuration loading for flareforge.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Missing values fall back to defaults, so a workspace runs with no
// config file at all (local-only, SQLite cache under the XDG data directory).
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from the --config flag
//  2. Path from FLAREFORGE_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/flareforge/config.yaml (~/.config/flareforge/config.yaml)
//
// Files ending in .toml are decoded as TOML; anything else is YAML.
//
// # Environment Variable Expansion
//
//	remote:
//	  base_url: "${FLAREFORGE_REMOTE}"
//
// # Configuration Sections
//
// Workspace (client) settings:
//
//	remote:
//	  base_url: "http://localhost:8080"   # empty = local-only
//	  timeout: "10s"
//	  breaker:
//	    enabled: true
//	    max_failures: 3
//	    open_timeout: "30s"
//
//	cache:
//	  driver: "sqlite"                    # sqlite, bolt, memory
//	  path: "~/.local/share/flareforge/workspace.db"
//
//	sync:
//	  flush_interval: "15s"               # pending-deletion retry loop
//	  retry_initial: "1s"
//	  retry_max: "5m"
//
// Backend settings:
//
//	server:
//	  http_addr: "localhost:8080"
//	  allowed_origins: ["http://localhost:5173"]
//	  dedupe_ttl: "10m"
//
//	database:
//	  path: "/var/lib/flareforge/backend.db"
//
// Shared:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	metrics:
//	  enabled: false
//	  path: "/metrics"
//
// # Validation
//
// Load() calls Validate(), which checks the cache driver, the remote URL
// scheme, retry bounds and the log format. The server additionally calls
// ValidateServer() for its address and database path.
package config
