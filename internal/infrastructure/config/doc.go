// Package config handles loading and validating relay gateway configuration.
//
// Configuration is layered: built-in defaults, then the YAML file, then
// RELAYGW_* environment variables. Validate collects every problem into a
// single error so a bad file is fixed in one pass.
//
// Secrets such as the MQTT and Redis passwords should come from the
// environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Source.Kind)
package config
