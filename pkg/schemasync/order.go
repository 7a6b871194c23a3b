package schemasync

import (
	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// Order sorts entities so every table comes after the tables its foreign
// keys reference. Among independent tables the input order is kept.
// References to tables outside the batch and self references are ignored.
func Order(metas []*schema.EntityMetadata) ([]*schema.EntityMetadata, error) {
	index := make(map[string]int, len(metas))
	for i, m := range metas {
		index[m.TableName] = i
	}

	inDegree := make([]int, len(metas))
	dependents := make([][]int, len(metas))
	for i, m := range metas {
		for _, dep := range m.Dependencies() {
			j, ok := index[dep]
			if !ok || j == i {
				continue
			}
			inDegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	ordered := make([]*schema.EntityMetadata, 0, len(metas))
	done := make([]bool, len(metas))
	for len(ordered) < len(metas) {
		next := -1
		for i := range metas {
			if !done[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}

		if next < 0 {
			var cycle []string
			for i, m := range metas {
				if !done[i] {
					cycle = append(cycle, m.TableName)
				}
			}
			return nil, &CyclicDependencyError{Tables: cycle}
		}

		done[next] = true
		ordered = append(ordered, metas[next])
		for _, d := range dependents[next] {
			inDegree[d]--
		}
	}

	return ordered, nil
}
