package driver

import "fmt"

// topoSort returns nodes in an order where every producer precedes its
// consumers, using Kahn's algorithm. An error is returned if edges form a
// cycle, which the dataflow graph must never contain.
func topoSort(nodes []string, edges map[string][]string) ([]string, error) {
	indegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		indegree[n] = 0
	}
	for _, consumers := range edges {
		for _, c := range consumers {
			indegree[c]++
		}
	}

	var queue []string
	for _, n := range nodes {
		if indegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	order := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, c := range edges[n] {
			indegree[c]--
			if indegree[c] == 0 {
				queue = append(queue, c)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, fmt.Errorf("dataflow graph contains a cycle: only %d of %d modules could be ordered", len(order), len(nodes))
	}
	return order, nil
}
