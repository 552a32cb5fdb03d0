package flow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/samber/lo"
	"go.uber.org/multierr"
)

var (
	ErrBufferClosed       = errors.New("buffer closed")
	ErrCycle              = errors.New("cycle in data flow")
	ErrIncompatibleLink   = errors.New("incompatible link")
	ErrInvalidLink        = errors.New("invalid link")
	ErrNotCloneable       = errors.New("type is not cloneable")
	ErrNoLookupSource     = errors.New("no lookup source")
	ErrNoLookupDefinition = errors.New("no lookup definition")
	ErrNoTransformation   = errors.New("no transformation")
	ErrNoTableDefinition  = errors.New("no table definition")
	ErrNoColumns          = errors.New("record type has no columns")
	ErrNetworkStarted     = errors.New("data flow already started")
	ErrPanic              = errors.New("panic in callback")

	// ErrSkip is returned by a join function to emit nothing for the current pair.
	ErrSkip = errors.New("skip")
)

// pairSeparator joins the rendering of both sides of a failed join.
const pairSeparator = "  |--| "

// ErrorRecord describes a row-level failure sent through an error channel.
type ErrorRecord struct {
	ErrorType    string    `json:"errorType"`
	Message      string    `json:"message"`
	ReportTime   time.Time `json:"reportTime"`
	RecordAsJSON string    `json:"recordAsJson"`
}

func newErrorRecord(err error, record string) ErrorRecord {
	return ErrorRecord{
		ErrorType:    fmt.Sprintf("%T", err),
		Message:      err.Error(),
		ReportTime:   time.Now(),
		RecordAsJSON: record,
	}
}

// renderRecord renders v as JSON. When v cannot be rendered, the marshalling error text stands in.
func renderRecord(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return err.Error()
	}
	return string(b)
}

// errorf wraps a sentinel error with a formatted detail.
func errorf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

func renderPair(left, right any) string {
	return renderRecord(left) + pairSeparator + renderRecord(right)
}

// combineErrors merges faults observed on several predecessors. Identical faults reported through
// several paths collapse into one, so a single root cause comes back unchanged.
func combineErrors(errs []error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	return multierr.Combine(lo.UniqBy(errs, func(err error) string { return err.Error() })...)
}

// safely runs a user callback and turns a panic into an error.
func safely[T any](f func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return f()
}

func safelyDo(f func() error) error {
	_, err := safely(func() (struct{}, error) { return struct{}{}, f() })
	return err
}

func nodeNames(nodes []*node) string {
	return strings.Join(lo.Map(nodes, func(n *node, _ int) string { return n.name }), ", ")
}
