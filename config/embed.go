package config

import _ "embed"

// DefaultConfigYAML built-in defaults, overridden by an external file and env
//
//go:embed default.yaml
var DefaultConfigYAML []byte
