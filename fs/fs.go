// Package appfs embeds the files shipped inside the binary.
package appfs

import "embed"

//go:embed migrations/*.sql
var FS embed.FS
