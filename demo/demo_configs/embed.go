package demo_configs

import (
	"embed"
)

// FS provides embedded default weight-table YAMLs for external usage.
//
//go:embed *.yaml
var FS embed.FS
