package flow

import (
	"context"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// network is the arena of the nodes of one connected data flow. Linking two nodes merges their
// networks; initializing a network wires every node exactly once.
type network struct {
	mu      sync.Mutex
	nodes   []*node
	started bool
	err     error
}

func newNetwork(n *node) *network {
	return &network{nodes: []*node{n}}
}

// merge moves the nodes of other into nw. Linking a started data flow is a programming error.
func (nw *network) merge(other *network) {
	if nw == other {
		return
	}
	nw.mu.Lock()
	defer nw.mu.Unlock()
	other.mu.Lock()
	defer other.mu.Unlock()

	if nw.started || other.started {
		panic(errorf(ErrNetworkStarted, "cannot link %s with %s", nodeNames(nw.nodes), nodeNames(other.nodes)))
	}
	for _, n := range other.nodes {
		n.net = nw
	}
	nw.nodes = append(nw.nodes, other.nodes...)
	other.nodes = nil
}

func (nw *network) members() []*node {
	nw.mu.Lock()
	defer nw.mu.Unlock()
	return append([]*node(nil), nw.nodes...)
}

// initialize wires the data flow: buffers are allocated, linked, completions are composed, then
// every drainer is started. Only the first call does the work, later ones return its outcome.
//
// A structural error faults every node of the network, so that no Wait blocks forever.
func (nw *network) initialize() error {
	nw.mu.Lock()
	defer nw.mu.Unlock()

	if nw.started {
		return nw.err
	}
	nw.started = true

	order, err := nw.sortTopologically()
	for _, n := range order {
		if err != nil {
			break
		}
		err = n.initBuffersOnce()
	}
	for _, n := range order {
		if err != nil {
			break
		}
		err = n.linkBuffersOnce()
	}
	if err != nil {
		nw.err = err
		for _, n := range nw.nodes {
			n.progress.finish(err)
			n.completion.resolve(err)
		}
		return err
	}

	for _, n := range order {
		n.composeOnce()
	}
	for _, n := range order {
		n.startOnce()
	}
	return nil
}

// sortTopologically orders the nodes so that every node comes after its predecessors.
func (nw *network) sortTopologically() ([]*node, error) {
	indegree := make(map[*node]int, len(nw.nodes))
	for _, n := range nw.nodes {
		indegree[n] = len(n.preds)
	}
	ready := lo.Filter(nw.nodes, func(n *node, _ int) bool { return indegree[n] == 0 })
	order := make([]*node, 0, len(nw.nodes))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, succ := range n.succs {
			indegree[succ]--
			if indegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
	}
	if len(order) != len(nw.nodes) {
		cyclic := lo.Filter(nw.nodes, func(n *node, _ int) bool { return indegree[n] > 0 })
		return nil, errorf(ErrCycle, "%s", nodeNames(cyclic))
	}
	return order, nil
}

// Run executes a whole data flow: the graphs of the given nodes are initialized, all their sources
// are executed concurrently, then Run waits for every node without successor. The first fault is
// returned, and cancels the context handed to the sources.
func Run(ctx context.Context, nodes ...Node) error {
	networks := lo.Uniq(lo.Map(nodes, func(n Node, _ int) *network { return n.base().net }))
	for _, nw := range networks {
		if err := nw.initialize(); err != nil {
			return err
		}
	}
	members := lo.FlatMap(networks, func(nw *network, _ int) []*node { return nw.members() })

	g, gctx := errgroup.WithContext(ctx)
	for _, n := range members {
		if src, ok := n.self.(Executable); ok && n.completion.State() == StatePending {
			g.Go(func() error { return src.Execute(gctx) })
		}
	}
	for _, n := range members {
		if len(n.succs) == 0 {
			g.Go(n.completion.Wait)
		}
	}
	return g.Wait()
}
