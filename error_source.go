package flow

// ErrorSource is the error channel of a node: it emits an ErrorRecord for every row-level error of
// its owner, and completes once the owner finished, successfully or not.
type ErrorSource struct {
	producer[ErrorRecord]
	owner    *node
	redirect *ErrorSource
}

func newErrorSource(owner *node) *ErrorSource {
	e := &ErrorSource{owner: owner}
	e.producer = newProducer[ErrorRecord](e, "ErrorSource", []Option{
		WithName(owner.name + " errors"),
		WithConfig(owner.config()),
		WithBufferSize(unbounded),
	})
	// Allocated eagerly: errors may be reported while the network is still being wired.
	e.output = newQueue[ErrorRecord](0)
	return e
}

// redirectErrors makes n report its row-level errors into to.
func redirectErrors(n *node, to *ErrorSource) {
	n.errorSource = &ErrorSource{redirect: to}
}

func (e *ErrorSource) send(err error, record string) error {
	if e.redirect != nil {
		return e.redirect.send(err, record)
	}
	return e.output.push(newErrorRecord(err, record))
}

func (e *ErrorSource) initBuffers() error { return nil }

func (e *ErrorSource) start() { e.runPump() }

func (e *ErrorSource) compose() {
	e.completion.begin()
	e.pool().submit(func() {
		<-e.owner.completion.Done()
		e.output.complete()
		<-e.output.done()
		e.finish(e.output.err())
	})
}

func (e *ErrorSource) completeBuffer() { e.output.complete() }

func (e *ErrorSource) faultBuffer(err error) { e.output.fault(err) }

func (e *ErrorSource) bufferDone() <-chan struct{} { return e.output.done() }

func (e *ErrorSource) bufferErr() error { return e.output.err() }
