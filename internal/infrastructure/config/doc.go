// Package config provides configuration loading for the Shark bridge.
//
// Configuration is loaded from a YAML file with hardcoded defaults and
// environment variable overrides, in that precedence order:
//
//  1. Defaults (suitable for a stock Shark account in the field environment)
//  2. YAML file values
//  3. SHARKBRIDGE_* environment variables
//
// # Example
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Ayla.PollInterval)
//
// # Secrets
//
// The Shark account password is deliberately NOT part of this file-based
// configuration. Credentials are submitted through the admin API and stored
// in the settings store (see internal/registry), matching how the cloud
// session is recovered across restarts.
package config
