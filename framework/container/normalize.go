package container

import (
	"sort"

	"github.com/km-arc/go-persistence/framework/tree"
)

// Section is one normalized category: its default name and a record per
// configured instance.
type Section struct {
	DefaultName string
	Records     map[string]tree.Node
}

// Normalize turns the raw section of one category into a default name and
// a record per instance, each the template with the instance's overrides
// merged over it.
//
// The default name is the section's default key (e.g. "defaultConnection")
// or fallback. When the section has a collection key (e.g. "connections")
// every entry is an instance stored under its key, or under its "id" when
// set, and flat keys are ignored. Otherwise the section itself is the one
// instance, stored under the default name.
//
// A null section yields no records. Normalize has no side effects.
func Normalize(cat Category, raw tree.Node, fallback string, template tree.Node) (string, map[string]tree.Node, error) {
	section := string(cat)
	records := make(map[string]tree.Node)
	if raw.IsNull() {
		return fallback, records, nil
	}
	if !raw.IsMap() {
		return "", nil, configErrorf(section, "expected mapping, got %s", raw.Kind())
	}

	defaultName := fallback
	if n, ok := raw.Lookup(cat.DefaultKey()); ok {
		s, isString := n.AsString()
		if !isString || s == "" {
			return "", nil, configErrorf(section, "%s must be a non-empty string", cat.DefaultKey())
		}
		defaultName = s
	}
	flat := raw.Without(cat.DefaultKey())

	collection, ok := flat.Lookup(cat.CollectionKey())
	if !ok {
		records[defaultName] = tree.Merge(template, flat.Without("id"))
		return defaultName, records, nil
	}
	if collection.IsNull() {
		return defaultName, records, nil
	}
	if !collection.IsMap() {
		return "", nil, configErrorf(section, "%s: expected mapping, got %s", cat.CollectionKey(), collection.Kind())
	}
	for _, key := range collection.Keys() {
		entry := collection.Get(key)
		switch {
		case entry.IsNull():
			entry = tree.EmptyMap()
		case !entry.IsMap():
			return "", nil, configErrorf(section, "%s.%s: expected mapping, got %s", cat.CollectionKey(), key, entry.Kind())
		}
		name := key
		if n, ok := entry.Lookup("id"); ok {
			s, isString := n.AsString()
			if !isString || s == "" {
				return "", nil, configErrorf(section, "%s.%s: id must be a non-empty string", cat.CollectionKey(), key)
			}
			name = s
		}
		if _, dup := records[name]; dup {
			return "", nil, configErrorf(section, "%s: duplicate instance name %q", cat.CollectionKey(), name)
		}
		records[name] = tree.Merge(template, entry)
	}
	return defaultName, records, nil
}

// NormalizeRoot normalizes every section of a root configuration tree.
// appPath anchors the default proxy and hydrator directories.
//
// An "orm" section requires a "dbal" section.
func NormalizeRoot(root tree.Node, appPath string) (map[Category]Section, error) {
	if root.IsNull() {
		root = tree.EmptyMap()
	}
	if !root.IsMap() {
		return nil, configErrorf("", "root: expected mapping, got %s", root.Kind())
	}
	if root.Has(string(EntityManagerCategory)) && !root.Has(string(ConnectionCategory)) {
		return nil, configErrorf(string(EntityManagerCategory), "entity managers need a %q section", ConnectionCategory)
	}

	out := make(map[Category]Section, len(Categories))
	normalize := func(cat Category, template tree.Node) error {
		name, records, err := Normalize(cat, root.Get(string(cat)), DefaultName, template)
		if err != nil {
			return err
		}
		out[cat] = Section{DefaultName: name, Records: records}
		return nil
	}

	if err := normalize(ConnectionCategory, connectionTemplate()); err != nil {
		return nil, err
	}
	if err := normalize(CacheCategory, cacheTemplate()); err != nil {
		return nil, err
	}
	conn, cacheName := out[ConnectionCategory].DefaultName, out[CacheCategory].DefaultName
	if err := normalize(EntityManagerCategory, entityManagerTemplate(appPath, conn, cacheName)); err != nil {
		return nil, err
	}
	if err := normalize(DocumentManagerCategory, documentManagerTemplate(appPath, cacheName)); err != nil {
		return nil, err
	}
	return out, nil
}

// Names returns the record names of s in sorted order.
func (s Section) Names() []string {
	names := make([]string, 0, len(s.Records))
	for name := range s.Records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
