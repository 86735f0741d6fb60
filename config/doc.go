// Package config resolves the goarchappl site configuration.
//
// # Search Order
//
// Resolve checks, in order:
//
//  1. The path named by $ARCHAPPL_CONFIG_FILE (fatal if set but unreadable)
//  2. ~/.config/goarchappl/config.toml
//  3. /etc/goarchappl/config.toml
//  4. A default file bundled into the binary
//
// The first file that exists is the single source of truth. A file that
// exists but fails to parse aborts resolution; there is no silent fallback
// to a lower-priority candidate.
//
// # File Format
//
// The TOML layout selects one of possibly several server sections:
//
//	[main]
//	use = "local"
//
//	[servers.local]
//	url = "http://127.0.0.1"
//	admin_port = 17665
//	data_port = 17665
//	admin_disabled = false
//
//	[cli.get]
//	format = "table"
//	default_window = "1h"
//
//	[misc]
//	timezone = "Local"
//
// The selected section is flattened into a Config struct. Individual options
// can then be overridden through environment variables (ARCHAPPL_ADMIN_URL,
// ARCHAPPL_DATA_URL, ARCHAPPL_FORMAT, ...), giving the precedence
// env override > user file > system file > bundled default.
//
// # Immutability
//
// Resolution happens once at process startup. The returned Config is a plain
// value and is never mutated afterwards; client constructors copy the fields
// they need.
package config
