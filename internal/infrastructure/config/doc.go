// Package config handles loading and validating Church Planner configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (and an optional .env file)
//   - Profile defaults for development and production
//   - Validation of required fields
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - A production profile refuses to start without a real signing secret
//     or with an insecure session cookie
//   - Outside production a fixed development secret is used when none is set
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.TokenTTL())
package config
