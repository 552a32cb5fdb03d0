package flow

import (
	"reflect"
)

// Producer is a node emitting records of type T.
type Producer[T any] interface {
	Node
	// LinkTo connects the node output to target. The first predicate keeps records for target, the
	// second one discards records into the void. A record matching neither is offered to the next
	// link, in link order, and dropped if no link takes it.
	LinkTo(target Consumer[T], predicates ...Predicate[T])
}

// Consumer is a node accepting records of type T.
type Consumer[T any] interface {
	Node
	inputQueue() *queue[T]
}

// Transformer is a node consuming In records and producing Out records.
type Transformer[In, Out any] interface {
	Consumer[In]
	Producer[Out]
}

// Chain links from to to and returns to as a producer, for fluent typed linking.
func Chain[In, Out any](from Producer[In], to Transformer[In, Out], predicates ...Predicate[In]) Producer[Out] {
	from.LinkTo(to, predicates...)
	return to
}

type edge[T any] struct {
	name    string
	target  *queue[T]
	keep    Predicate[T]
	discard Predicate[T]
}

func newEdge[T any](succ *node, predicates any) (edge[T], error) {
	target, ok := succ.self.(Consumer[T])
	if !ok {
		return edge[T]{}, errorf(ErrIncompatibleLink, "%s does not consume %s", succ.name, reflect.TypeFor[T]())
	}
	preds, _ := predicates.([]Predicate[T])
	if len(preds) > 2 {
		return edge[T]{}, errorf(ErrInvalidLink, "%d predicates on the link to %s, expected a keep and a discard predicate at most", len(preds), succ.name)
	}
	e := edge[T]{name: succ.name, target: target.inputQueue()}
	if len(preds) > 0 {
		e.keep = preds[0]
	}
	if len(preds) > 1 {
		e.discard = preds[1]
	}
	return e, nil
}

// accepts evaluates the predicates of the edge: taken by the target, dropped into the void, or neither.
func (e edge[T]) accepts(v T) (keep, discard bool, err error) {
	keep, err = safely(func() (bool, error) { return e.keep == nil || e.keep(v), nil })
	if err != nil || keep || e.discard == nil {
		return keep, false, err
	}
	discard, err = safely(func() (bool, error) { return e.discard(v), nil })
	return false, discard, err
}

// producer is the output stage of a node: a queue drained by a pump routing records to the linked
// targets.
type producer[T any] struct {
	*node
	output *queue[T]
	edges  []edge[T]
}

func newProducer[T any](impl component, kind string, opts []Option) producer[T] {
	return producer[T]{node: newNode(impl, kind, opts)}
}

func (p *producer[T]) LinkTo(target Consumer[T], predicates ...Predicate[T]) {
	p.link(target.base(), predicates)
}

func (p *producer[T]) linkBuffers(succ *node, predicates any) error {
	e, err := newEdge[T](succ, predicates)
	if err != nil {
		return err
	}
	p.edges = append(p.edges, e)
	return nil
}

func (p *producer[T]) emit(v T) error {
	return p.output.push(v)
}

// runPump drains the output queue into the linked targets until it is completed or faulted.
func (p *producer[T]) runPump() {
	p.pool().submit(func() {
		defer p.output.settle()
		for {
			v, ok := p.output.pop()
			if !ok {
				return
			}
			if err := p.route(v); err != nil {
				p.faultWithPredecessors(err)
				return
			}
		}
	})
}

func (p *producer[T]) route(v T) error {
	for _, e := range p.edges {
		keep, discard, err := e.accepts(v)
		switch {
		case err != nil:
			return err
		case keep:
			return e.target.push(v)
		case discard:
			return nil
		}
	}
	return nil
}
