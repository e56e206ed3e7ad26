package provider

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var builtinCatalog []byte

type catalogFile struct {
	Providers []Provider `yaml:"providers"`
}

// DecodeCatalog reads a provider catalog in YAML form.
func DecodeCatalog(r io.Reader) ([]Provider, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode provider catalog: %w", err)
	}
	return file.Providers, nil
}

// Builtin returns the providers shipped with the binary.
func Builtin() ([]Provider, error) {
	return DecodeCatalog(bytes.NewReader(builtinCatalog))
}

// LoadRegistry builds a registry from the catalog at path, or from the
// built-in catalog when path is empty.
func LoadRegistry(path string) (*Registry, error) {
	var (
		providers []Provider
		err       error
	)
	if path == "" {
		providers, err = Builtin()
	} else {
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open provider catalog: %w", err)
		}
		defer f.Close()
		providers, err = DecodeCatalog(f)
	}
	if err != nil {
		return nil, err
	}
	return NewRegistry(providers...)
}
