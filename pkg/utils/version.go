// Package utils holds build metadata for the grove binary.
package utils

// Set at release time with -ldflags "-X github.com/papercomputeco/grove/pkg/utils.Version=...".
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)
