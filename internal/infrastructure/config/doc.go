// Package config handles loading and validating tankbot configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Configuration is static: it is loaded once at startup and never reloaded.
// The broker address, credentials and publish topic are fixed for the life
// of the process.
//
// Security Considerations:
//   - Sensitive values (MQTT password, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Broker.URI)
package config
