// Package factory provides a generic registry used to build pluggable
// modules (metrics sinks, audit stores) from their configuration.
package factory
