package config

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"

	"github.com/a8m/envsubst"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// Read reads a config from the given file, expanding environment variables first.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return parse(filePath, buf)
}

// FromReader reads a config from the given reader. originalPath is only used in errors.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	expanded, err := envsubst.Bytes(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot expand environment in %q", originalPath)
	}
	return parse(originalPath, expanded)
}

func parse(originalPath string, expanded []byte) (*Config, error) {
	cfg := &Config{}
	dec := json.NewDecoder(bytes.NewReader(expanded))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "cannot parse config %q", originalPath)
	}
	if f := cfg.Camera.IntrinsicsFile; f != "" && !filepath.IsAbs(f) {
		cfg.Camera.IntrinsicsFile = filepath.Join(filepath.Dir(originalPath), f)
	}
	if err := cfg.Ensure(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %q", originalPath)
	}
	return cfg, nil
}

// Schema returns the JSON schema of the config file.
func Schema() ([]byte, error) {
	return json.MarshalIndent(jsonschema.Reflect(&Config{}), "", "  ")
}
