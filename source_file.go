package varbind

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

// fileSource is the shipped file-backed custom source. Init loads the file
// named by the descriptor's SourcePath into an in-memory mapping, once per
// path; Fetch looks up the descriptor's external variable name as a key in
// that mapping (case-insensitively, as viper keys are). Variables binding to
// it put SourceFile in their binding order and set Options.SourcePath.
type fileSource struct {
	mu    sync.RWMutex
	files map[string]*viper.Viper
}

func newFileSource() *fileSource {
	return &fileSource{files: make(map[string]*viper.Viper)}
}

func (s *fileSource) ID() SourceID { return SourceFile }

// InitKey memoizes Init per file path.
func (s *fileSource) InitKey(d *Descriptor) string { return d.SourcePath() }

func (s *fileSource) Init(d *Descriptor) error {
	path := d.SourcePath()
	if path == "" {
		return fmt.Errorf("source %q: variable %s has no source path", SourceFile, d.displayName())
	}

	s.mu.RLock()
	_, loaded := s.files[path]
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("source %q: loading %s: %w", SourceFile, path, err)
	}

	s.mu.Lock()
	s.files[path] = v
	s.mu.Unlock()
	return nil
}

func (s *fileSource) Fetch(d *Descriptor) (Value, error) {
	s.mu.RLock()
	v, ok := s.files[d.SourcePath()]
	s.mu.RUnlock()
	if !ok {
		return NoValue(), nil
	}

	key := d.externalName()
	if key == "" || !v.IsSet(key) {
		return NoValue(), nil
	}
	return SomeValue(v.Get(key)), nil
}
