package destination

import "reflect"

// Diff computes the set of top-level-or-nested keys that differ
// between before and after, returning the changed-key paths (dotted)
// and the after-side values at those paths. Callers publish only when
// len(changed) > 0.
func Diff(before, after map[string]any) ([]string, map[string]any) {
	changed := map[string]any{}
	var keys []string
	diffInto("", before, after, changed, &keys)
	return keys, changed
}

func diffInto(prefix string, before, after map[string]any, changed map[string]any, keys *[]string) {
	for k, av := range after {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}

		bv, existed := before[k]
		if !existed {
			changed[path] = av
			*keys = append(*keys, path)
			continue
		}

		bMap, bIsMap := bv.(map[string]any)
		aMap, aIsMap := av.(map[string]any)
		if bIsMap && aIsMap {
			diffInto(path, bMap, aMap, changed, keys)
			continue
		}

		if !equalValue(bv, av) {
			changed[path] = av
			*keys = append(*keys, path)
		}
	}

	for k := range before {
		if _, stillPresent := after[k]; !stillPresent {
			path := k
			if prefix != "" {
				path = prefix + "." + k
			}
			changed[path] = nil
			*keys = append(*keys, path)
		}
	}
}

func equalValue(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
