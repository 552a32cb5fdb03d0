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

type FirstName struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type LastName struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Person struct {
	ID       int
	FullName string
}

func TestMergeJoin(t *testing.T) {
	fullName := func(f FirstName, l LastName) (Person, error) {
		return Person{ID: max(f.ID, l.ID), FullName: f.Name + " " + l.Name}, nil
	}

	t.Run("pairs_by_position", func(t *testing.T) {
		// Arrange
		cfg := InitConfig(t, 0)
		firsts := flow.NewMemorySource([]FirstName{{1, "Marilyn"}, {2, "James"}}, flow.WithConfig(cfg))
		lasts := flow.NewMemorySource([]LastName{{1, "Monroe"}, {2, "Dean"}}, flow.WithConfig(cfg))
		join := flow.NewMergeJoin(fullName, flow.WithConfig(cfg))
		dest := flow.NewMemoryDestination[Person](flow.WithConfig(cfg))
		firsts.LinkTo(join.Left)
		lasts.LinkTo(join.Right)
		join.LinkTo(dest)

		// Act
		err := flow.Run(context.Background(), firsts, lasts)

		// Assert
		td.CmpNoError(t, err)
		td.Cmp(t, dest.Data(), []Person{{1, "Marilyn Monroe"}, {2, "James Dean"}})
		td.Cmp(t, names(join.Predecessors()), []string{"MergeJoin left", "MergeJoin right"})
	})

	t.Run("uneven_inputs", func(t *testing.T) {
		// Arrange
		cfg := InitConfig(t, 0)
		firsts := flow.NewMemorySource([]FirstName{{1, "Marilyn"}, {2, "James"}, {3, "Audrey"}}, flow.WithConfig(cfg))
		lasts := flow.NewMemorySource([]LastName{{1, "Monroe"}}, flow.WithConfig(cfg))
		join := flow.NewMergeJoin(fullName, flow.WithConfig(cfg))
		dest := flow.NewMemoryDestination[Person](flow.WithConfig(cfg))
		firsts.LinkTo(join.Left)
		lasts.LinkTo(join.Right)
		join.LinkTo(dest)

		// Act
		err := flow.Run(context.Background(), firsts, lasts)

		// Assert
		td.CmpNoError(t, err)
		td.Cmp(t, dest.Data(), []Person{{1, "Marilyn Monroe"}, {2, "James "}, {3, "Audrey "}})
	})

	t.Run("empty_side", func(t *testing.T) {
		// Arrange
		cfg := InitConfig(t, 0)
		firsts := flow.NewMemorySource([]FirstName{}, flow.WithConfig(cfg))
		lasts := flow.NewMemorySource([]LastName{{7, "Dean"}}, flow.WithConfig(cfg))
		join := flow.NewMergeJoin(fullName, flow.WithConfig(cfg))
		dest := flow.NewMemoryDestination[Person](flow.WithConfig(cfg))
		firsts.LinkTo(join.Left)
		lasts.LinkTo(join.Right)
		join.LinkTo(dest)

		// Act
		err := flow.Run(context.Background(), firsts, lasts)

		// Assert
		td.CmpNoError(t, err)
		td.Cmp(t, dest.Data(), []Person{{7, " Dean"}})
	})

	t.Run("errors_are_redirected", func(t *testing.T) {
		// Arrange
		cfg := InitConfig(t, 0)
		firsts := flow.NewMemorySource([]FirstName{{1, "Marilyn"}, {2, "James"}}, flow.WithConfig(cfg))
		lasts := flow.NewMemorySource([]LastName{{1, "Monroe"}, {2, "Dean"}}, flow.WithConfig(cfg))
		join := flow.NewMergeJoin(func(f FirstName, l LastName) (Person, error) {
			if f.ID == 2 {
				return Person{}, errors.New("unknown person")
			}
			return fullName(f, l)
		}, flow.WithConfig(cfg))
		dest := flow.NewMemoryDestination[Person](flow.WithConfig(cfg))
		errDest := flow.NewMemoryDestination[flow.ErrorRecord](flow.WithConfig(cfg))
		firsts.LinkTo(join.Left)
		lasts.LinkTo(join.Right)
		join.LinkTo(dest)
		join.LinkErrorTo(errDest)

		// Act
		err := flow.Run(context.Background(), firsts, lasts)

		// Assert
		td.CmpNoError(t, err)
		td.Cmp(t, dest.Data(), []Person{{1, "Marilyn Monroe"}})
		td.Cmp(t, lo.Map(errDest.Data(), func(r flow.ErrorRecord, _ int) string { return r.RecordAsJSON }),
			[]string{`{"id":2,"name":"James"}  |--| {"id":2,"name":"Dean"}`})
	})

	t.Run("error_faults_both_sides", func(t *testing.T) {
		// Arrange
		cfg := InitConfig(t, 0)
		errBoom := errors.New("boom")
		firsts := flow.NewMemorySource([]FirstName{{1, "Marilyn"}}, flow.WithConfig(cfg))
		lasts := flow.NewMemorySource([]LastName{{1, "Monroe"}}, flow.WithConfig(cfg))
		join := flow.NewMergeJoin(func(FirstName, LastName) (Person, error) { return Person{}, errBoom }, flow.WithConfig(cfg))
		dest := flow.NewMemoryDestination[Person](flow.WithConfig(cfg))
		firsts.LinkTo(join.Left)
		lasts.LinkTo(join.Right)
		join.LinkTo(dest)

		// Act
		err := flow.Run(context.Background(), firsts, lasts)

		// Assert
		td.CmpErrorIs(t, err, errBoom)
		td.CmpErrorIs(t, dest.Wait(), errBoom)
		td.CmpErrorIs(t, join.Wait(), errBoom)
	})
}

func TestCrossJoin(t *testing.T) {
	concat := func(letter string, number int) (string, error) {
		return fmt.Sprint(letter, number), nil
	}

	t.Run("every_pair", func(t *testing.T) {
		// Arrange
		cfg := InitConfig(t, 0)
		letters := flow.NewMemorySource([]string{"A", "B"}, flow.WithConfig(cfg))
		numbers := flow.NewMemorySource([]int{1, 2, 3}, flow.WithConfig(cfg))
		join := flow.NewCrossJoin(concat, flow.WithConfig(cfg))
		dest := flow.NewMemoryDestination[string](flow.WithConfig(cfg))
		letters.LinkTo(join.InMemory)
		numbers.LinkTo(join.Passing)
		join.LinkTo(dest)

		// Act
		err := flow.Run(context.Background(), letters, numbers)

		// Assert
		td.CmpNoError(t, err)
		td.Cmp(t, dest.Data(), []string{"A1", "B1", "A2", "B2", "A3", "B3"})
		td.Cmp(t, flow.InputCapacity[string](join.InMemory), 0, "in-memory side is unbounded")
	})

	t.Run("size_is_product", func(t *testing.T) {
		// Arrange
		cfg := InitConfig(t, 0)
		letters := flow.NewMemorySource(lo.Map(lo.Range(7), func(i, _ int) string { return fmt.Sprint(i) }), flow.WithConfig(cfg))
		numbers := flow.NewMemorySource(lo.Range(11), flow.WithConfig(cfg))
		join := flow.NewCrossJoin(concat, flow.WithConfig(cfg), flow.WithBufferSize(2))
		dest := flow.NewMemoryDestination[string](flow.WithConfig(cfg), flow.WithBufferSize(2))
		letters.LinkTo(join.InMemory)
		numbers.LinkTo(join.Passing)
		join.LinkTo(dest)

		// Act
		err := flow.Run(context.Background(), letters, numbers)

		// Assert
		td.CmpNoError(t, err)
		td.CmpLen(t, dest.Data(), 77)
	})

	t.Run("skipped_pairs", func(t *testing.T) {
		// Arrange
		cfg := InitConfig(t, 0)
		letters := flow.NewMemorySource([]string{"A", "B"}, flow.WithConfig(cfg))
		numbers := flow.NewMemorySource([]int{1, 2}, flow.WithConfig(cfg))
		join := flow.NewCrossJoin(func(letter string, number int) (*string, error) {
			switch {
			case letter == "A" && number == 2:
				return nil, flow.ErrSkip
			case letter == "B" && number == 1:
				return nil, nil
			}
			return lo.ToPtr(fmt.Sprint(letter, number)), nil
		}, flow.WithConfig(cfg))
		dest := flow.NewMemoryDestination[*string](flow.WithConfig(cfg))
		letters.LinkTo(join.InMemory)
		numbers.LinkTo(join.Passing)
		join.LinkTo(dest)

		// Act
		err := flow.Run(context.Background(), letters, numbers)

		// Assert
		td.CmpNoError(t, err)
		td.Cmp(t, lo.FromSlicePtr(dest.Data()), []string{"A1", "B2"})
	})

	t.Run("empty_in_memory_side", func(t *testing.T) {
		// Arrange
		cfg := InitConfig(t, 0)
		letters := flow.NewMemorySource([]string{}, flow.WithConfig(cfg))
		numbers := flow.NewMemorySource([]int{1, 2}, flow.WithConfig(cfg))
		join := flow.NewCrossJoin(concat, flow.WithConfig(cfg))
		dest := flow.NewMemoryDestination[string](flow.WithConfig(cfg))
		letters.LinkTo(join.InMemory)
		numbers.LinkTo(join.Passing)
		join.LinkTo(dest)

		// Act
		err := flow.Run(context.Background(), letters, numbers)

		// Assert
		td.CmpNoError(t, err)
		td.CmpLen(t, dest.Data(), 0)
	})

	t.Run("errors_are_redirected", func(t *testing.T) {
		// Arrange
		cfg := InitConfig(t, 0)
		letters := flow.NewMemorySource([]string{"A", "B"}, flow.WithConfig(cfg))
		numbers := flow.NewMemorySource([]int{1}, flow.WithConfig(cfg))
		join := flow.NewCrossJoin(func(letter string, number int) (string, error) {
			if letter == "B" {
				return "", errors.New("no B")
			}
			return concat(letter, number)
		}, flow.WithConfig(cfg))
		dest := flow.NewMemoryDestination[string](flow.WithConfig(cfg))
		errDest := flow.NewMemoryDestination[flow.ErrorRecord](flow.WithConfig(cfg))
		letters.LinkTo(join.InMemory)
		numbers.LinkTo(join.Passing)
		join.LinkTo(dest)
		join.LinkErrorTo(errDest)

		// Act
		err := flow.Run(context.Background(), letters, numbers)

		// Assert
		td.CmpNoError(t, err)
		td.Cmp(t, dest.Data(), []string{"A1"})
		td.Cmp(t, lo.Map(errDest.Data(), func(r flow.ErrorRecord, _ int) string { return r.RecordAsJSON }), []string{`"B"  |--| 1`})
	})
}
