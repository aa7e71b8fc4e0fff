package tree

// Merge returns base with override laid over it. Mappings merge key by key,
// recursively; every other override value, sequences included, replaces the
// base value at that position. Neither input is modified.
func Merge(base, override Node) Node {
	if base.kind != Mapping || override.kind != Mapping {
		return override
	}
	out := make(map[string]Node, len(base.m)+len(override.m))
	for k, v := range base.m {
		out[k] = v
	}
	for k, v := range override.m {
		if prev, ok := out[k]; ok {
			out[k] = Merge(prev, v)
			continue
		}
		out[k] = v
	}
	return Node{kind: Mapping, m: out}
}

// MergeAll folds Merge over layers from left to right.
func MergeAll(base Node, layers ...Node) Node {
	out := base
	for _, l := range layers {
		out = Merge(out, l)
	}
	return out
}
