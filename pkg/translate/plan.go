package translate

import "github.com/minz/w2m/pkg/wasm"

// plan is the module planner's output (spec.md §4.1): which functions
// to translate, in what order, and which of them are entries.
type plan struct {
	order   []uint32 // callee-before-caller emit order
	entries []uint32 // deduplicated entry indices, in discovery order
}

// mainExportNames lists the names for export resolution, checked in this priority
// order against exported functions (spec.md §4.1).
var mainExportNames = []string{"main", "_start", ""}

// discoverEntries finds the start-section function (if any) and the
// first export named "main", "_start", or "" that resolves to a
// function, and returns their deduplicated union in (start, main) order.
func discoverEntries(m *wasm.Module) ([]uint32, error) {
	var entries []uint32
	seen := map[uint32]bool{}
	add := func(idx uint32) {
		if !seen[idx] {
			seen[idx] = true
			entries = append(entries, idx)
		}
	}

	if m.Start != nil {
		add(*m.Start)
	}

	for _, name := range mainExportNames {
		found := false
		for _, exp := range m.Exports {
			if exp.Kind == wasm.ExportFunc && exp.Name == name {
				add(exp.Index)
				found = true
				break
			}
		}
		if found {
			break
		}
	}

	if len(entries) == 0 {
		return nil, newErr(NoEntry, -1, nil, "no start or main function")
	}
	return entries, nil
}

// callGraph scans every defined function's body for Call occurrences.
// It is a multi-map: self-loops and duplicate edges are permitted
// (spec.md §4.1).
func callGraph(m *wasm.Module) map[uint32][]uint32 {
	graph := map[uint32][]uint32{}
	nImports := uint32(m.NumFuncImports())
	for i := range m.Functions {
		caller := nImports + uint32(i)
		scanCalls(m.Functions[i].Body, graph, caller)
	}
	return graph
}

func scanCalls(body []wasm.Instr, graph map[uint32][]uint32, caller uint32) {
	for _, instr := range body {
		if instr.Op == wasm.OpCall {
			graph[caller] = append(graph[caller], instr.FuncIdx)
		}
		if len(instr.Then) > 0 {
			scanCalls(instr.Then, graph, caller)
		}
		if len(instr.Else) > 0 {
			scanCalls(instr.Else, graph, caller)
		}
	}
}

// buildPlan runs entry discovery, builds the call graph, and computes
// the callee-before-caller emit order (spec.md §4.1): a DFS from each
// entry (in entry order), concatenated, deduplicated keeping the
// first occurrence, then reversed.
func buildPlan(m *wasm.Module) (*plan, error) {
	entries, err := discoverEntries(m)
	if err != nil {
		return nil, err
	}
	graph := callGraph(m)

	var visitOrder []uint32
	visited := map[uint32]bool{}
	var dfs func(idx uint32)
	dfs = func(idx uint32) {
		if visited[idx] {
			return
		}
		visited[idx] = true
		visitOrder = append(visitOrder, idx)
		for _, callee := range graph[idx] {
			dfs(callee)
		}
	}
	for _, e := range entries {
		dfs(e)
	}

	dedup := make([]uint32, 0, len(visitOrder))
	seen := map[uint32]bool{}
	for _, idx := range visitOrder {
		if !seen[idx] {
			seen[idx] = true
			dedup = append(dedup, idx)
		}
	}
	order := make([]uint32, len(dedup))
	for i, idx := range dedup {
		order[len(dedup)-1-i] = idx
	}

	return &plan{order: order, entries: entries}, nil
}
