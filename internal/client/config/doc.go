// Package config loads runtime configuration for the gateway CLI client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string        gateway base URL
//	-session string  session file path
//	-timeout int     request timeout (seconds)
//
// Flags must precede the command; everything from the first positional
// argument on is returned to the caller untouched.
//
// # JSON schema
//
//	{
//	  "server_url": "http://localhost:8080",
//	  "session_file": "/home/me/.config/progres-gateway/session.json",
//	  "timeout": "30s"
//	}
package config
