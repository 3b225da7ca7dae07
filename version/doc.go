// Package version reports the dockerfs version and build metadata.
//
// Values injected at compile time win:
//
//	-ldflags "-X github.com/dendrascience/dockerfs/version.Version=v1.0.0 -X github.com/dendrascience/dockerfs/version.Commit=abc1234 -X github.com/dendrascience/dockerfs/version.Date=2026-01-01T00:00:00Z"
//
// Otherwise the module version and VCS settings recorded by the Go toolchain
// are used, and development builds report "development".
package version
