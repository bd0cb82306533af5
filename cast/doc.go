// Package cast converts raw values fetched from binding sources into the
// type declared for a variable. Casts are pure functions: they either return
// the typed value or an error, and never mutate global state. The package
// also hosts the process-wide registries for tokens, named references, and
// user-supplied custom casters, which the strict type variants resolve
// against.
package cast
