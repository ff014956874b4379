// Package file stores the configuration in a TOML file, by default
// ~/.backsync/config.toml. Engine settings live under [engine] and
// [storage]; each [sources.<name>] table defines one remote source.
package file
