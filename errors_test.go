package flow_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fogfactory/flow"
	"github.com/maxatome/go-testdeep/td"
	"github.com/samber/lo"
)

func TestErrorChannel(t *testing.T) {
	failOnEven := flow.Transform[int, int](func(i int) (int, error) {
		if i%2 == 0 {
			return 0, fmt.Errorf("cannot handle %d", i)
		}
		return i, nil
	})

	t.Run("errors_are_redirected", func(t *testing.T) {
		// Arrange
		cfg := InitConfig(t, 0)
		source := flow.NewMemorySource(lo.RangeFrom(1, 5), flow.WithConfig(cfg))
		transformation := flow.NewRowTransformation(failOnEven, flow.WithConfig(cfg))
		dest := flow.NewMemoryDestination[int](flow.WithConfig(cfg))
		errDest := flow.NewMemoryDestination[flow.ErrorRecord](flow.WithConfig(cfg))
		source.LinkTo(transformation)
		transformation.LinkTo(dest)
		transformation.LinkErrorTo(errDest)

		// Act
		err := flow.Run(context.Background(), source)

		// Assert
		td.CmpNoError(t, err)
		td.Cmp(t, dest.Data(), []int{1, 3, 5})
		records := errDest.Data()
		td.Cmp(t, lo.Map(records, func(r flow.ErrorRecord, _ int) string { return r.Message }), []string{"cannot handle 2", "cannot handle 4"})
		td.Cmp(t, lo.Map(records, func(r flow.ErrorRecord, _ int) string { return r.RecordAsJSON }), []string{"2", "4"})
		td.Cmp(t, lo.Map(records, func(r flow.ErrorRecord, _ int) string { return r.ErrorType }), []string{"*errors.errorString", "*errors.errorString"})
		td.CmpFalse(t, records[0].ReportTime.IsZero())
		td.CmpNoError(t, errDest.Wait())
		td.Cmp(t, transformation.Completion().State(), flow.StateSucceeded)
	})

	t.Run("errors_fault_the_flow_without_channel", func(t *testing.T) {
		// Arrange
		cfg := InitConfig(t, 0)
		source := flow.NewMemorySource(lo.RangeFrom(1, 5), flow.WithConfig(cfg))
		transformation := flow.NewRowTransformation(failOnEven, flow.WithConfig(cfg))
		dest := flow.NewMemoryDestination[int](flow.WithConfig(cfg))
		source.LinkTo(transformation)
		transformation.LinkTo(dest)

		// Act
		err := flow.Run(context.Background(), source)

		// Assert
		td.CmpString(t, err, "cannot handle 2")
		td.Cmp(t, dest.Completion().State(), flow.StateFaulted)
		td.Cmp(t, transformation.Completion().State(), flow.StateFaulted)
	})

	t.Run("panics_are_errors", func(t *testing.T) {
		// Arrange
		cfg := InitConfig(t, 0)
		source := flow.NewMemorySource([]int{1, 2}, flow.WithConfig(cfg))
		transformation := flow.NewRowTransformation(func(i int) (int, error) {
			if i == 2 {
				panic("unexpected")
			}
			return i, nil
		}, flow.WithConfig(cfg))
		dest := flow.NewMemoryDestination[int](flow.WithConfig(cfg))
		errDest := flow.NewMemoryDestination[flow.ErrorRecord](flow.WithConfig(cfg))
		source.LinkTo(transformation)
		transformation.LinkTo(dest)
		transformation.LinkErrorTo(errDest)

		// Act
		err := flow.Run(context.Background(), source)

		// Assert
		td.CmpNoError(t, err)
		td.Cmp(t, dest.Data(), []int{1})
		td.Cmp(t, errDest.Data(), td.Len(1))
		td.CmpContains(t, errDest.Data()[0].Message, "unexpected")
	})

	t.Run("source_errors_are_redirected", func(t *testing.T) {
		// Arrange
		cfg := InitConfig(t, 0)
		reads := 0
		closed := false
		source := flow.NewCustomSource(func(context.Context) (string, bool, error) {
			reads++
			switch {
			case reads == 2:
				return "", true, errors.New("unreadable line")
			case reads > 3:
				return "", false, nil
			}
			return fmt.Sprint("line ", reads), true, nil
		}, flow.WithConfig(cfg))
		source.CloseFunc = func() error { closed = true; return nil }
		dest := flow.NewMemoryDestination[string](flow.WithConfig(cfg))
		errDest := flow.NewMemoryDestination[flow.ErrorRecord](flow.WithConfig(cfg))
		source.LinkTo(dest)
		source.LinkErrorTo(errDest)

		// Act
		err := flow.Run(context.Background(), source)

		// Assert
		td.CmpNoError(t, err)
		td.Cmp(t, dest.Data(), []string{"line 1", "line 3"})
		td.Cmp(t, lo.Map(errDest.Data(), func(r flow.ErrorRecord, _ int) string { return r.Message }), []string{"unreadable line"})
		td.CmpTrue(t, closed)
	})

	t.Run("write_errors_are_redirected", func(t *testing.T) {
		// Arrange
		cfg := InitConfig(t, 0)
		type Item struct {
			ID int `json:"id"`
		}
		source := flow.NewMemorySource([]Item{{ID: 1}, {ID: 2}}, flow.WithConfig(cfg))
		dest := flow.NewCustomDestination(func(i Item) error {
			if i.ID == 2 {
				return errors.New("rejected")
			}
			return nil
		}, flow.WithConfig(cfg))
		errDest := flow.NewMemoryDestination[flow.ErrorRecord](flow.WithConfig(cfg))
		source.LinkTo(dest)
		dest.LinkErrorTo(errDest)

		// Act
		err := flow.Run(context.Background(), source)

		// Assert
		td.CmpNoError(t, err)
		td.Cmp(t, lo.Map(errDest.Data(), func(r flow.ErrorRecord, _ int) string { return r.RecordAsJSON }), []string{`{"id":2}`})
	})

	t.Run("error_channel_completes_with_faulted_owner", func(t *testing.T) {
		// Arrange
		cfg := InitConfig(t, 0)
		errBoom := errors.New("boom")
		source := flow.NewCustomSource(func(context.Context) (int, bool, error) { return 0, true, errBoom }, flow.WithConfig(cfg))
		dest := flow.NewCustomDestination(func(int) error { return nil }, flow.WithConfig(cfg))
		errDest := flow.NewMemoryDestination[flow.ErrorRecord](flow.WithConfig(cfg))
		source.LinkTo(dest)
		errSource := dest.LinkErrorTo(errDest)

		// Act
		err := source.Execute(context.Background())

		// Assert
		td.CmpErrorIs(t, err, errBoom)
		td.CmpErrorIs(t, dest.Wait(), errBoom)
		td.CmpNoError(t, errSource.Wait())
		td.CmpNoError(t, errDest.Wait())
		td.CmpLen(t, errDest.Data(), 0)
	})

	t.Run("error_record_json", func(t *testing.T) {
		// Arrange
		cfg := InitConfig(t, 0)
		type Pair struct {
			Name string `json:"name"`
		}
		left := flow.NewMemorySource([]Pair{{Name: "left"}}, flow.WithConfig(cfg))
		right := flow.NewMemorySource([]Pair{{Name: "right"}}, flow.WithConfig(cfg))
		join := flow.NewMergeJoin(func(l, r Pair) (Pair, error) { return Pair{}, errors.New("no match") }, flow.WithConfig(cfg))
		dest := flow.NewMemoryDestination[Pair](flow.WithConfig(cfg))
		errDest := flow.NewMemoryDestination[flow.ErrorRecord](flow.WithConfig(cfg))
		left.LinkTo(join.Left)
		right.LinkTo(join.Right)
		join.LinkTo(dest)
		join.LinkErrorTo(errDest)

		// Act
		err := flow.Run(context.Background(), left, right)

		// Assert
		td.CmpNoError(t, err)
		td.CmpLen(t, dest.Data(), 0)
		td.Cmp(t, errDest.Data(), td.Len(1))
		td.Cmp(t, errDest.Data()[0].RecordAsJSON, `{"name":"left"}  |--| {"name":"right"}`)
	})
}
