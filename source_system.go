package varbind

import "os"

// systemSource reads OS environment variables under the descriptor's
// external variable name. An unset or blank variable is no value, not an
// error, so resolution falls through to the next source.
type systemSource struct{}

func (systemSource) ID() SourceID { return SourceSystem }

func (systemSource) Fetch(d *Descriptor) (Value, error) {
	name := d.ExternalVariableName()
	if name == "" {
		return NoValue(), nil
	}
	v, found := os.LookupEnv(name)
	if !found || v == "" {
		return NoValue(), nil
	}
	return SomeValue(v), nil
}
