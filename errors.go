package varbind

import "errors"

// Resolver-level errors. Match with errors.Is; messages returned by the
// resolver wrap these with the variable's rendered name.
var (
	// ErrRequired is returned by Get and Reload when a variable marked
	// Required resolves to nothing: no source produced a value and no
	// default is set. This is the only hard error Get can return.
	ErrRequired = errors.New("variable is undefined")

	// ErrCacheDisabled is returned by Put when the variable was declared
	// with caching disabled. Put writes to the cache only and has nothing
	// to write to.
	ErrCacheDisabled = errors.New("cache disabled for this variable")

	// ErrInvalidOptions is returned by Define and NewDescriptor when the
	// declaration is malformed, for example an empty key path.
	ErrInvalidOptions = errors.New("invalid variable declaration")
)
