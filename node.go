package flow

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Node is a vertex of a data flow: a source, a transformation or a destination.
type Node interface {
	// Name returns the name given with WithName, or the component kind.
	Name() string
	// Completion returns the outcome of the node.
	Completion() *Completion
	// Wait blocks until the node has processed and handed off every record.
	Wait() error
	Predecessors() []Node
	Successors() []Node
	// LinkErrorTo redirects row-level errors of the node to target instead of faulting the flow.
	LinkErrorTo(target Consumer[ErrorRecord]) Producer[ErrorRecord]

	base() *node
}

// component is the contract between the network and a concrete node.
type component interface {
	initBuffers() error
	linkBuffers(succ *node, predicates any) error
	start()
	completeBuffer()
	faultBuffer(err error)
	bufferDone() <-chan struct{}
	bufferErr() error
	onSuccess() error
	onFault(err error)
}

// composer is implemented by nodes whose completion does not follow their predecessors.
type composer interface {
	compose()
}

type node struct {
	id       uuid.UUID
	name     string
	kind     string
	settings nodeSettings
	self     Node
	impl     component
	net      *network

	preds      []*node
	succs      []*node
	predicates map[*node]any
	linked     map[*node]bool

	initialized bool
	composed    bool
	started     bool

	completion  *Completion
	errorSource *ErrorSource
	progress    *progress
}

func newNode(impl component, kind string, opts []Option) *node {
	settings := newNodeSettings(opts)
	n := &node{
		id:         uuid.New(),
		name:       settings.name,
		kind:       kind,
		settings:   settings,
		impl:       impl,
		predicates: make(map[*node]any),
		linked:     make(map[*node]bool),
		completion: newCompletion(),
	}
	if n.name == "" {
		n.name = kind
	}
	n.self, _ = impl.(Node)
	n.net = newNetwork(n)
	n.progress = newProgress(n)
	return n
}

func (n *node) base() *node { return n }

func (n *node) Name() string { return n.name }

func (n *node) Completion() *Completion { return n.completion }

func (n *node) Wait() error { return n.completion.Wait() }

func (n *node) Predecessors() []Node {
	return lo.Map(n.preds, func(p *node, _ int) Node { return p.self })
}

func (n *node) Successors() []Node {
	return lo.Map(n.succs, func(s *node, _ int) Node { return s.self })
}

func (n *node) LinkErrorTo(target Consumer[ErrorRecord]) Producer[ErrorRecord] {
	if n.errorSource == nil {
		n.errorSource = newErrorSource(n)
		n.net.merge(n.errorSource.net)
	}
	n.errorSource.LinkTo(target)
	return n.errorSource
}

func (n *node) config() *Config {
	if n.settings.config != nil {
		return n.settings.config
	}
	return DefaultConfig()
}

func (n *node) pool() *Pool {
	return n.config().Pool
}

// bufferSize returns the queue capacity of the node, 0 meaning unbounded.
func (n *node) bufferSize() int {
	switch {
	case n.settings.bufferSize < 0:
		return 0
	case n.settings.bufferSize > 0:
		return n.settings.bufferSize
	}
	return n.config().MaxBufferSize
}

// effectiveInputCapacity returns the capacity of the buffer n receives records in, which may differ
// from its buffer size, before the buffers are allocated.
func (n *node) effectiveInputCapacity() int {
	if c, ok := n.impl.(interface{ inputCapacity() int }); ok {
		return c.inputCapacity()
	}
	return n.bufferSize()
}

func (n *node) parallelism() int {
	return max(1, n.settings.parallelism)
}

// link records the edge n -> succ. Both graphs are merged into one network.
func (n *node) link(succ *node, predicates any) {
	n.net.merge(succ.net)
	n.predicates[succ] = predicates
	if lo.Contains(n.succs, succ) {
		return
	}
	n.succs = append(n.succs, succ)
	succ.preds = append(succ.preds, n)
}

// linkBuffers is the default for nodes that produce nothing.
func (n *node) linkBuffers(succ *node, _ any) error {
	return errorf(ErrIncompatibleLink, "%s produces no record for %s", n.name, succ.name)
}

func (n *node) onSuccess() error { return nil }

func (n *node) onFault(error) {}

// throwOrRedirect handles a row-level error. With an error channel the error is reported there and
// nil is returned, so processing goes on. Otherwise the node and all its transitive predecessors are
// faulted and err is returned.
func (n *node) throwOrRedirect(err error, record string) error {
	if n.errorSource != nil {
		if sendErr := n.errorSource.send(err, record); sendErr == nil {
			return nil
		}
	}
	n.faultWithPredecessors(err)
	return err
}

func (n *node) faultWithPredecessors(err error) {
	visited := make(map[*node]bool)
	pending := []*node{n}
	for len(pending) > 0 {
		current := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if visited[current] {
			continue
		}
		visited[current] = true
		current.impl.faultBuffer(err)
		pending = append(pending, current.preds...)
	}
}

// awaitPredecessors waits until every predecessor completed and drained its buffer, and returns
// their combined faults.
func (n *node) awaitPredecessors() error {
	var errs []error
	for _, p := range n.preds {
		errs = append(errs, p.completion.Wait())
		<-p.impl.bufferDone()
		errs = append(errs, p.impl.bufferErr())
	}
	return combineErrors(errs)
}

func (n *node) composeFromPredecessors() {
	n.completion.begin()
	n.pool().submit(func() {
		err := n.awaitPredecessors()
		if err != nil {
			n.impl.faultBuffer(err)
		} else {
			n.impl.completeBuffer()
		}
		<-n.impl.bufferDone()
		if err == nil {
			err = n.impl.bufferErr()
		}
		n.finish(err)
	})
}

// runSource drives the completion of a node without predecessors once read returns.
func (n *node) runSource(read func() error) {
	err := read()
	if err != nil {
		n.impl.faultBuffer(err)
	} else {
		n.impl.completeBuffer()
	}
	<-n.impl.bufferDone()
	if err == nil {
		err = n.impl.bufferErr()
	}
	n.finish(err)
}

// finish runs exactly one cleanup hook and resolves the completion.
func (n *node) finish(err error) {
	if err == nil {
		err = safelyDo(n.impl.onSuccess)
	} else {
		_ = safelyDo(func() error { n.impl.onFault(err); return nil })
	}
	n.progress.finish(err)
	n.completion.resolve(err)
}

func (n *node) initBuffersOnce() error {
	if n.initialized {
		return nil
	}
	if err := n.impl.initBuffers(); err != nil {
		return fmt.Errorf("%s: %w", n.name, err)
	}
	n.initialized = true
	return nil
}

func (n *node) linkBuffersOnce() error {
	for _, succ := range n.succs {
		if n.linked[succ] {
			continue
		}
		if err := n.impl.linkBuffers(succ, n.predicates[succ]); err != nil {
			return err
		}
		n.linked[succ] = true
	}
	return nil
}

func (n *node) composeOnce() {
	if n.composed {
		return
	}
	n.composed = true
	if c, ok := n.impl.(composer); ok {
		c.compose()
		return
	}
	n.composeFromPredecessors()
}

func (n *node) startOnce() {
	if n.started {
		return
	}
	n.started = true
	n.impl.start()
}
