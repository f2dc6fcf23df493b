// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors shared across packages. Callers classify with errors.Is.
var (
	// Frame access errors
	ErrOutOfBounds = errors.New("dnsreflect: header out of frame bounds")

	// Control plane errors: attach failures and block-list population.
	// These are fatal at startup.
	ErrControlPlane = errors.New("dnsreflect: control plane failure")

	// Configuration errors
	ErrConfigInvalid = errors.New("dnsreflect: invalid configuration")

	// Ingress errors
	ErrReadTimeout     = errors.New("dnsreflect: read timeout")
	ErrPipelineStopped = errors.New("dnsreflect: pipeline stopped")
)
