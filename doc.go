// Package varbind resolves named configuration variables by walking an
// ordered list of binding sources (the OS environment, structured
// application configuration, and user-defined custom sources), casting the
// raw value to a declared type and caching the resolved result for fast
// repeated reads.
//
// Variables are declared once with Define and read through the returned
// Variable, optionally scoped to a namespace at call time:
//
//	hostname := varbind.MustDefine("myapp", []string{"hostname"}, varbind.Options{
//		Default: "localhost",
//	})
//
//	host := hostname.MustGet()       // MYAPP_HOSTNAME, then app config, then default
//	host = hostname.MustGet("prod")  // PROD_MYAPP_HOSTNAME first, with fallback
//
// Resolution is synchronous, in-process, and safe for concurrent callers.
// The only I/O in the hot path is a cache or environment read; file-backed
// sources load their file once and memoize it.
package varbind
