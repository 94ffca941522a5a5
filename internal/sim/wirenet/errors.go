package wirenet

import "errors"

var (
	ErrUnknownPoint         = errors.New("wirenet: unknown connection point")
	ErrDuplicateConnector   = errors.New("wirenet: connector already present")
	ErrUnknownConnector     = errors.New("wirenet: no connector at position")
	ErrSelfLoop             = errors.New("wirenet: cannot connect a point to itself")
	ErrDuplicateConnection  = errors.New("wirenet: points already connected")
	ErrNotConnected         = errors.New("wirenet: points are not connected")
	ErrIncompatibleWire     = errors.New("wirenet: wire category not accepted")
	ErrHandlerNotRegistered = errors.New("wirenet: handler not registered")
	ErrHandlerTypeMismatch  = errors.New("wirenet: handler type mismatch")
	ErrUnknownHandlerKind   = errors.New("wirenet: unknown handler kind")
	ErrRegistryClosed       = errors.New("wirenet: handler registry closed")
)
