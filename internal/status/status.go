package status

import "errors"

var (
	ErrNotCancelable  = errors.New("reservation: reservation can not be cancelled")
	ErrCancelInFlight = errors.New("reservation: cancellation already in progress")
	ErrNoSession      = errors.New("session: no active session")
	ErrNoRefreshToken = errors.New("session: no refresh token")
	ErrCircuitOpen    = errors.New("transport: circuit breaker is open")
)
