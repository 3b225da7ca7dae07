// Package util holds the small pieces shared across dockerfs: sentinel
// errors, inode derivation and the runtime timestamp parser.
package util
