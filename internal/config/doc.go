// Package config provides configuration management for the adns resolver daemon.
//
// The package uses a Provider interface to abstract configuration loading, with the
// primary implementation being filesystem-based configuration via YAML files.
//
// # Configuration Structure
//
// Configuration is structured as follows:
//
//	socket:
//	  path: /var/run/adnsd.socket    # Unix domain socket path
//	resolver:
//	  upstreams:                     # upstream resolvers, host:port
//	    - 1.1.1.1:53
//	    - 8.8.8.8:53
//	  timeout: 5s                    # per-query resolution timeout
//	  retries: 2                     # additional exchange attempts
//
// # Basic Usage
//
// Load configuration using the default path (~/.adns/config.yaml):
//
//	provider := config.New()
//	cfg, err := provider.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Load configuration from a specific path:
//
//	provider := config.NewWithPath(filesys.OS(), "/etc/adns/config.yaml")
//	cfg, err := provider.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Configuration Validation
//
// The package performs validation of loaded configuration:
//   - Socket path must not be empty
//   - Resolver timeout must be at least 1 second
//   - Every upstream must be a host:port pair
//
// If no configuration file exists, Default() values are used instead.
//
// The resolver section is only consulted when a new resolver context is
// constructed. The daemon re-reads the file on SIGHUP, and the refreshed
// snapshot takes effect on the next purge.
package config
