package mapping

import (
	"bytes"
	"io"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

type yamlClass struct {
	ClassMetadata `yaml:",inline"`
	Fields        map[string]FieldMapping `yaml:"fields"`
}

// ParseYAML decodes a mapping document. aliases expand "Alias:Short"
// entity names; nil means none are allowed.
func ParseYAML(data []byte, aliases map[string]string) ([]*ClassMetadata, error) {
	var doc map[string]yamlClass
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.NotValidf("mapping document: %v", err)
	}
	out := make([]*ClassMetadata, 0, len(doc))
	for name, c := range doc {
		full, err := ExpandAlias(name, aliases)
		if err != nil {
			return nil, errors.Trace(err)
		}
		md := c.ClassMetadata
		md.Name = full
		md.Fields = make([]FieldMapping, 0, len(c.Fields))
		for field, fm := range c.Fields {
			fm.Field = field
			if fm.Type == "" {
				fm.Type = "string"
			}
			md.Fields = append(md.Fields, fm)
		}
		sortFields(md.Fields)
		out = append(out, &md)
	}
	return out, nil
}

// readDirs parses every *.yml and *.yaml file directly inside dirs. A name
// defined twice is an error.
func readDirs(fs afero.Fs, dirs []string, aliases map[string]string) (map[string]*ClassMetadata, error) {
	found := make(map[string]*ClassMetadata)
	origin := make(map[string]string)
	for _, dir := range dirs {
		infos, err := afero.ReadDir(fs, dir)
		if err != nil {
			return nil, errors.Annotatef(err, "reading mapping directory %q", dir)
		}
		for _, info := range infos {
			ext := filepath.Ext(info.Name())
			if info.IsDir() || (ext != ".yml" && ext != ".yaml") {
				continue
			}
			file := filepath.Join(dir, info.Name())
			classes, err := readFile(fs, file, aliases)
			if err != nil {
				return nil, errors.Trace(err)
			}
			for _, md := range classes {
				if prev, dup := origin[md.Name]; dup {
					return nil, errors.AlreadyExistsf("mapping for %q in %s and %s", md.Name, prev, file)
				}
				origin[md.Name] = file
				found[md.Name] = md
			}
		}
	}
	return found, nil
}

func readFile(fs afero.Fs, file string, aliases map[string]string) ([]*ClassMetadata, error) {
	data, err := afero.ReadFile(fs, file)
	if err != nil {
		return nil, errors.Trace(err)
	}
	classes, err := ParseYAML(data, aliases)
	if err != nil {
		return nil, errors.Annotatef(err, "%s", file)
	}
	return classes, nil
}
