/*
flow runs record-oriented data flows: sources, transformations and destinations linked into a graph,
each node processing records concurrently with the others.

Records move between nodes through bounded buffers. A node whose buffer is full blocks its
producers, so memory stays bounded by the sum of the buffer sizes whatever the speed of each node.
Buffer capacity defaults to Config.MaxBufferSize and can be set per node with WithBufferSize.

A graph is built by linking nodes, then started by executing its sources:

	source := flow.NewMemorySource([]int{1, 2, 3})
	double := flow.NewRowTransformation(flow.AsTransform(func(i int) int { return i * 2 }))
	dest := flow.NewMemoryDestination[int]()
	source.LinkTo(double)
	double.LinkTo(dest)
	err := flow.Run(ctx, source, dest)

The first execution initializes the buffers of every node reachable from the source, in
topological order. Links carry optional predicates: the first one keeps records for the target,
the second one discards them. A record taken by no link is dropped.

Every node ends with a Completion. A node completes once all its predecessors completed and its
own buffers are drained, so waiting on the destinations waits for the whole graph. A failure
faults the failing node and, transitively, all of its predecessors; the fault then reaches the
successors through their completion.

Row-level errors (a failing transformation, join, write or read) fault the graph, unless the node
was given an error channel with LinkErrorTo. The error is then reported as an ErrorRecord and the
record is skipped.

Joins (MergeJoin, CrossJoin) expose one JoinTarget per input. Multicast copies every record to
each of its successors, with a deep copy per successor. CachedRowTransformation and
LookupTransformation enrich records from a cache. BatchDestination and DbDestination write records
in batches.

The goroutines running node loops come from an ants pool held by the Config (see Pool). Progress
is logged with zerolog, every Config.LoggingThresholdRows records.
*/

package flow
