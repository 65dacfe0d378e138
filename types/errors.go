package types

import "errors"

// Sentinel errors surfaced to local callers and mapped to wire Error replies
// by the config server. Use errors.Is against these across package
// boundaries; call sites should wrap with fmt.Errorf("...: %w", ErrX) to add
// path/key context.
var (
	ErrNotFound           = errors.New("not found")
	ErrTypeMismatch       = errors.New("type mismatch")
	ErrOutOfRange         = errors.New("value out of attribute range")
	ErrReadOnly           = errors.New("attribute is read-only")
	ErrParse              = errors.New("parse error")
	ErrMalformedXML       = errors.New("malformed xml")
	ErrVersionMismatch    = errors.New("xml version mismatch")
	ErrNameInUse          = errors.New("name already in use")
	ErrNameReserved       = errors.New("name is reserved")
	ErrInvalidName        = errors.New("invalid name")
	ErrLibraryNotFound    = errors.New("library not found")
	ErrModuleInitFailed   = errors.New("module init failed")
	ErrTLSHandshakeFailed = errors.New("tls handshake failed")
	ErrTLSLoadFailed      = errors.New("tls load failed")
	ErrTransport          = errors.New("transport error")
	ErrOversize           = errors.New("message exceeds maximum size")
	ErrModuleRunning      = errors.New("module is running")
)
