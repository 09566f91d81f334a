package compiler

import (
	"strings"

	"github.com/roach88/framegraph/internal/ir"
)

// blockGraph maps a block to the blocks consuming its outputs. Nodes keep
// declaration order so analysis is deterministic.
type blockGraph struct {
	nodes []ir.BlockID
	succ  map[ir.BlockID][]ir.BlockID
}

func buildBlockGraph(g *ir.BlockGraph) blockGraph {
	bg := blockGraph{succ: make(map[ir.BlockID][]ir.BlockID, len(g.Blocks))}
	for _, b := range g.Blocks {
		bg.nodes = append(bg.nodes, b.ID)
		bg.succ[b.ID] = nil
	}
	for _, e := range g.Edges {
		if _, ok := bg.succ[e.From.Block]; !ok {
			continue
		}
		if _, ok := bg.succ[e.To.Block]; !ok {
			continue
		}
		bg.succ[e.From.Block] = append(bg.succ[e.From.Block], e.To.Block)
	}
	return bg
}

// findCycles reports every strongly connected component of the block graph
// that forms a cycle: more than one block, or a block wired to itself.
// Lowering has already broken legal feedback through state blocks, so any
// cycle left here is an error.
func findCycles(bg blockGraph) []CompileError {
	var errs []CompileError
	for _, scc := range tarjanSCC(bg) {
		if len(scc) == 1 && !hasSelfLoop(scc[0], bg) {
			continue
		}
		path := cyclePath(scc, bg)
		names := make([]string, len(path))
		for i, b := range path {
			names[i] = string(b)
		}
		d := diag(ErrCycle, "cycle in block graph: %s", strings.Join(names, " -> "))
		d.Block = path[0]
		errs = append(errs, d)
	}
	return errs
}

func hasSelfLoop(node ir.BlockID, bg blockGraph) bool {
	for _, n := range bg.succ[node] {
		if n == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Components come out in reverse topological order.
func tarjanSCC(bg blockGraph) [][]ir.BlockID {
	var (
		index   = 0
		stack   []ir.BlockID
		indices = make(map[ir.BlockID]int)
		lowlink = make(map[ir.BlockID]int)
		onStack = make(map[ir.BlockID]bool)
		sccs    [][]ir.BlockID
	)

	var strongConnect func(ir.BlockID)
	strongConnect = func(v ir.BlockID) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range bg.succ[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []ir.BlockID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range bg.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// cyclePath walks edges inside an SCC from its first member back to it.
func cyclePath(scc []ir.BlockID, bg blockGraph) []ir.BlockID {
	in := make(map[ir.BlockID]bool, len(scc))
	for _, n := range scc {
		in[n] = true
	}
	start := scc[len(scc)-1]
	path := []ir.BlockID{start}
	visited := map[ir.BlockID]bool{}
	cur := start
	for {
		visited[cur] = true
		var next ir.BlockID
		found := false
		for _, n := range bg.succ[cur] {
			if in[n] && (!visited[n] || n == start) {
				next, found = n, true
				break
			}
		}
		if !found {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		cur = next
	}
	return path
}

// reachableFromSinks returns the blocks that feed a render or camera block,
// sinks included.
func reachableFromSinks(g *ir.BlockGraph) map[ir.BlockID]bool {
	pred := make(map[ir.BlockID][]ir.BlockID)
	for _, e := range g.Edges {
		pred[e.To.Block] = append(pred[e.To.Block], e.From.Block)
	}
	seen := make(map[ir.BlockID]bool)
	var queue []ir.BlockID
	for _, b := range g.Blocks {
		if b.Capability == ir.CapabilityRender || b.Capability == ir.CapabilityCamera {
			seen[b.ID] = true
			queue = append(queue, b.ID)
		}
	}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		for _, p := range pred[b] {
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	return seen
}

// checkEdges reports edges whose endpoints are not declared blocks.
func checkEdges(g *ir.BlockGraph) []CompileError {
	known := make(map[ir.BlockID]bool, len(g.Blocks))
	for _, b := range g.Blocks {
		known[b.ID] = true
	}
	var errs []CompileError
	for _, e := range g.Edges {
		for _, end := range []ir.PortRef{e.From, e.To} {
			if known[end.Block] {
				continue
			}
			d := diag(ErrUnknownBlock, "edge %s -> %s references undeclared block %q", e.From, e.To, end.Block)
			if known[e.To.Block] {
				d.Block = e.To.Block
			} else if known[e.From.Block] {
				d.Block = e.From.Block
			}
			errs = append(errs, d)
		}
	}
	return errs
}

// checkCameras reports every camera-like global after the first.
func checkCameras(g *ir.BlockGraph) []CompileError {
	cams := g.BlocksWith(ir.CapabilityCamera)
	if len(cams) <= 1 {
		return nil
	}
	ids := make([]string, len(cams))
	for i, c := range cams {
		ids[i] = string(c.ID)
	}
	return []CompileError{diag(ErrMultipleCamera, "%d camera blocks (%s); at most one is allowed",
		len(cams), strings.Join(ids, ", "))}
}
