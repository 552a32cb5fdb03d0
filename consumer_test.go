package flow

import (
	"context"
	"testing"

	"github.com/maxatome/go-testdeep/td"
)

func TestConsumer(t *testing.T) {
	t.Run("panicking_handle_faults_the_flow", func(t *testing.T) {
		// Arrange
		cfg, err := NewConfig(Settings{DisableAllLogging: true})
		td.Require(t).CmpNoError(err)
		t.Cleanup(cfg.Release)
		source := NewMemorySource([]int{1, 2, 3, 4}, WithConfig(cfg))
		dest := NewMemoryDestination[int](WithConfig(cfg), WithBufferSize(1))
		dest.handle = func(v int) error {
			if v == 2 {
				panic("handle exploded")
			}
			return dest.write(v)
		}
		source.LinkTo(dest)

		// Act
		err = Run(context.Background(), source)

		// Assert
		td.CmpErrorIs(t, err, ErrPanic)
		td.CmpErrorIs(t, dest.Wait(), ErrPanic)
		td.Cmp(t, dest.Completion().State(), StateFaulted)
		td.Cmp(t, dest.Data(), []int{1})
	})
}
