package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccess_CarriesNoErrors(t *testing.T) {
	result := Success(42)

	assert.True(t, result.IsSuccess())
	assert.Empty(t, result.Errors())
	assert.NoError(t, result.Err())

	value, ok := result.Value()
	assert.True(t, ok)
	assert.Equal(t, 42, value)
}

func TestFailure_CarriesAtLeastOneError(t *testing.T) {
	result := Failure[int]("first", "second")

	assert.False(t, result.IsSuccess())
	assert.Equal(t, []string{"first", "second"}, result.Errors())

	value, ok := result.Value()
	assert.False(t, ok)
	assert.Zero(t, value)
}

func TestFailureFrom(t *testing.T) {
	tests := []struct {
		name    string
		errs    []string
		wantErr error
	}{
		{name: "empty list rejected", errs: nil, wantErr: ErrNoErrors},
		{name: "empty slice rejected", errs: []string{}, wantErr: ErrNoErrors},
		{name: "single error", errs: []string{"boom"}},
		{name: "several errors", errs: []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := FailureFrom[string](tt.errs)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.False(t, result.IsSuccess())
			assert.Equal(t, tt.errs, result.Errors())
		})
	}
}

func TestErrors_ReturnsCopy(t *testing.T) {
	result := Failure[int]("original")

	errs := result.Errors()
	errs[0] = "mutated"

	assert.Equal(t, []string{"original"}, result.Errors())
}

func TestMatch_InvokesExactlyOneHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var got string
		failureCalled := false
		Success("value").Match(
			func(v string) { got = v },
			func([]string) { failureCalled = true },
		)
		assert.Equal(t, "value", got)
		assert.False(t, failureCalled)
	})

	t.Run("failure", func(t *testing.T) {
		var got []string
		successCalled := false
		Failure[string]("bad").Match(
			func(string) { successCalled = true },
			func(errs []string) { got = errs },
		)
		assert.Equal(t, []string{"bad"}, got)
		assert.False(t, successCalled)
	})
}

func TestErr_JoinsMessages(t *testing.T) {
	err := Failure[int]("one", "two").Err()
	require.Error(t, err)

	var verrs *Errors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, []string{"one", "two"}, verrs.Messages)
	assert.Equal(t, "one; two", err.Error())
}

func TestMapAndBind(t *testing.T) {
	doubled := Map(Success(21), func(v int) int { return v * 2 })
	value, ok := doubled.Value()
	require.True(t, ok)
	assert.Equal(t, 42, value)

	failed := Map(Failure[int]("nope"), func(v int) int { return v * 2 })
	assert.Equal(t, []string{"nope"}, failed.Errors())

	positive := func(v int) Errorable[int] {
		if v <= 0 {
			return Failure[int]("must be positive")
		}
		return Success(v)
	}
	assert.True(t, Bind(Success(1), positive).IsSuccess())
	assert.Equal(t, []string{"must be positive"}, Bind(Success(-1), positive).Errors())
	assert.Equal(t, []string{"earlier"}, Bind(Failure[int]("earlier"), positive).Errors())
}

type pair struct {
	name  string
	count int
}

func withName(p pair, name string) pair { p.name = name; return p }
func withCount(p pair, count int) pair  { p.count = count; return p }

func TestAccumulate_AppliesAllUpdatesOnSuccess(t *testing.T) {
	result := Accumulate(pair{},
		Apply(Success("widget"), withName),
		Apply(Success(3), withCount),
	)

	value, ok := result.Value()
	require.True(t, ok)
	assert.Equal(t, pair{name: "widget", count: 3}, value)
}

func TestAccumulate_CollectsEveryFailureInOrder(t *testing.T) {
	result := Accumulate(pair{},
		Apply(Failure[string]("name missing"), withName),
		Apply(Success(3), withCount),
		Apply(Failure[int]("count bad", "count negative"), withCount),
	)

	assert.False(t, result.IsSuccess())
	assert.Equal(t, []string{"name missing", "count bad", "count negative"}, result.Errors())
}

func TestAccumulate_ErrorCountIsSumOfFailures(t *testing.T) {
	tests := []struct {
		name    string
		results []Errorable[int]
		want    int
	}{
		{
			name:    "one of three fails",
			results: []Errorable[int]{Success(1), Failure[int]("a"), Success(3)},
			want:    1,
		},
		{
			name:    "two of four fail with several messages",
			results: []Errorable[int]{Failure[int]("a", "b"), Success(2), Failure[int]("c", "d", "e"), Success(4)},
			want:    5,
		},
		{
			name:    "all fail",
			results: []Errorable[int]{Failure[int]("a"), Failure[int]("b")},
			want:    2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updates := make([]Errorable[func(pair) pair], 0, len(tt.results))
			for _, r := range tt.results {
				updates = append(updates, Apply(r, withCount))
			}
			result := Accumulate(pair{}, updates...)
			assert.False(t, result.IsSuccess())
			assert.Len(t, result.Errors(), tt.want)
		})
	}
}

func TestAll(t *testing.T) {
	ok := All(Success(1), Success(2), Success(3))
	values, success := ok.Value()
	require.True(t, success)
	assert.Equal(t, []int{1, 2, 3}, values)

	failed := All(Success(1), Failure[int]("x"), Failure[int]("y", "z"))
	assert.Equal(t, []string{"x", "y", "z"}, failed.Errors())
}
