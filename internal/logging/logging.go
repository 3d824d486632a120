// Package logging wraps the structured logger that netmsg's server and
// request manager take. Only the request manager writes to it: a handler
// that returned an error, and a reply that could not be sent.
//
// Grounded on go.uber.org/zap, used directly for logging (not just pulled
// in transitively) by the pack's cybroslabs-libdlms-go example. mini-rpc
// itself only reaches for the standard "log" package inline
// (server.go, middleware/logging_middleware.go); this generalizes that
// single call-site style to a shared, structured logger without growing
// the density of logging calls — most of this codebase logs nothing at all.
package logging

import "go.uber.org/zap"

// Logger is the narrow sugared-logger surface netmsg code depends on.
type Logger = *zap.SugaredLogger

// NewNop returns a logger that discards everything, the default for tests
// and for callers that don't want netmsg's internals chattering.
func NewNop() Logger {
	return zap.NewNop().Sugar()
}

// NewProduction returns zap's production logger (JSON, info level) wrapped
// as a sugared logger, falling back to NewNop if zap cannot build it.
func NewProduction() Logger {
	l, err := zap.NewProduction()
	if err != nil {
		return NewNop()
	}
	return l.Sugar()
}
