package workflow

import "sort"

// ExpandGrid expands a parameter grid into the cartesian product of all
// value lists. Keys are iterated in sorted order and the last sorted key
// varies fastest, so the expansion order is deterministic for a given
// grid. An empty grid expands to a single empty combination.
func ExpandGrid(grid map[string][]interface{}) []map[string]interface{} {
	keys := make([]string, 0, len(grid))
	for k := range grid {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	total := 1
	for _, k := range keys {
		total *= len(grid[k])
	}
	if total == 0 {
		return nil
	}

	combos := make([]map[string]interface{}, 0, total)
	indices := make([]int, len(keys))

	for {
		combo := make(map[string]interface{}, len(keys))
		for i, k := range keys {
			combo[k] = grid[k][indices[i]]
		}
		combos = append(combos, combo)

		// Odometer increment, rightmost digit first.
		pos := len(keys) - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < len(grid[keys[pos]]) {
				break
			}
			indices[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}

	return combos
}
