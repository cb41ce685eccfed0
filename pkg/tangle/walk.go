package tangle

import "github.com/iotaledger/hornet-tangle-core/pkg/hornet"

// WalkAncestors walks the past cone of startID breadth-first over parent
// edges, calling visit for every vertex found. It stops descending a
// branch once visit returns false, once it crosses a solid entry point,
// or once it reaches a message missing from the tangle -- the same
// "stop at solid-entry-points, otherwise keep climbing through parents"
// shape Metz-2-hornet's getMilestoneApprovees cone walk uses for
// pruning, generalized here as shared traversal infrastructure. Its
// caller in this module is the coordinator's merkle cone collection
// (pkg/coordinator); the solidifier and the white-flag walker walk
// parents on their own.
//
// visit is called at most once per distinct message id.
func (t *Tangle) WalkAncestors(startID hornet.MessageId, visit func(hornet.MessageId, *Vertex) bool) {
	visited := make(map[hornet.MessageId]struct{})
	queue := hornet.MessageIDs{startID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}

		if t.IsSolidEntryPoint(id) {
			continue
		}

		vertex, ok := t.Get(id)
		if !ok {
			continue
		}

		if !visit(id, vertex) {
			continue
		}

		for _, parent := range vertex.Message.Parents() {
			if _, ok := visited[parent]; !ok {
				queue = append(queue, parent)
			}
		}
	}
}
