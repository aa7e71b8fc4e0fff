// Package tree holds the configuration value type shared by the loader, the
// normalizer and the builders.
//
// A configuration tree is what a YAML, TOML or JSON document decodes to:
// mappings, sequences and scalars. Node tags each variant explicitly so that
// the recursive merge can apply one rule per variant:
//
//	mapping  + mapping  → merged key by key, recursively
//	anything + sequence → the override sequence, wholesale
//	anything + scalar   → the override scalar
//	anything + null     → null
//
//	defaults := tree.MustOf(map[string]any{
//	    "adapter": "array",
//	    "options": map[string]any{"limit": 100, "ttl": "1m"},
//	})
//	rec := tree.Merge(defaults, tree.MustOf(map[string]any{
//	    "options": map[string]any{"limit": 10},
//	}))
//	// rec.options == {limit: 10, ttl: "1m"}
package tree
