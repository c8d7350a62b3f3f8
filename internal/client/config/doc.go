// Package config loads runtime configuration for the SpaceTask CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string     address:port of the backend gRPC endpoint
//	-i int        online status check interval (seconds)
//	-s string     directory holding the local session database
//	-t duration   per-call timeout
//
// # JSON schema
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "session_dir": ".spacetask",
//	  "call_timeout": "10s"
//	}
package config
