package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/pelletier/go-toml"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/km-arc/go-persistence/framework/tree"
)

// LoadTree reads a configuration file, expands ${VAR} references against
// the environment and decodes it by extension: .yml, .yaml, .toml or
// .json.
func LoadTree(fs afero.Fs, path string) (tree.Node, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return tree.Node{}, errors.Annotatef(err, "reading %s", path)
	}
	data := []byte(os.ExpandEnv(string(raw)))

	var v any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &v); err != nil {
			return tree.Node{}, errors.NewNotValid(err, path)
		}
	case ".toml":
		t, err := toml.LoadBytes(data)
		if err != nil {
			return tree.Node{}, errors.NewNotValid(err, path)
		}
		v = t.ToMap()
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return tree.Node{}, errors.NewNotValid(err, path)
		}
	default:
		return tree.Node{}, errors.NotSupportedf("configuration format %q", ext)
	}

	n, err := tree.Of(v)
	if err != nil {
		return tree.Node{}, errors.NewNotValid(err, path)
	}
	return n, nil
}

// Tree describes the one connection named by the DB_* settings, plus an
// in-memory default cache for managers to use.
func (c DBConfig) Tree() tree.Node {
	params := map[string]any{
		"driver":   c.Driver,
		"host":     c.Host,
		"dbname":   c.Database,
		"user":     c.Username,
		"password": c.Password,
	}
	if c.Port != "" {
		params["port"] = c.Port
	}
	if c.Driver == "sqlite3" || c.Driver == "sqlite" {
		params["path"] = c.Database
	}
	return tree.MustOf(map[string]any{
		"dbal":  map[string]any{"parameters": params},
		"cache": map[string]any{"adapter": "array"},
	})
}

// Persistence returns the container configuration: PersistenceFile when
// set, DB.Tree otherwise.
func (c *Config) Persistence(fs afero.Fs) (tree.Node, error) {
	if c.PersistenceFile == "" {
		return c.DB.Tree(), nil
	}
	return LoadTree(fs, c.PersistenceFile)
}
