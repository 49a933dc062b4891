package validation

import (
	"errors"
	"strings"
)

// ErrNoErrors is returned when a failure is requested with an empty error list.
var ErrNoErrors = errors.New("validation: a failure must carry at least one error")

// Errorable holds either a successfully computed value or one or more
// messages explaining why the value could not be produced.
//
// The zero value is not a valid Errorable; use Success or Failure.
type Errorable[T any] struct {
	value  T
	errors []string
	ok     bool
}

// Success wraps a computed value.
func Success[T any](value T) Errorable[T] {
	return Errorable[T]{value: value, ok: true}
}

// Failure records one or more errors. The signature requires at least one
// message so an empty failure cannot be constructed.
func Failure[T any](first string, rest ...string) Errorable[T] {
	errs := make([]string, 0, 1+len(rest))
	errs = append(errs, first)
	errs = append(errs, rest...)
	return Errorable[T]{errors: errs}
}

// FailureFrom builds a failure from a dynamic list of messages, rejecting
// an empty list with ErrNoErrors.
func FailureFrom[T any](errs []string) (Errorable[T], error) {
	if len(errs) == 0 {
		return Errorable[T]{}, ErrNoErrors
	}
	return Failure[T](errs[0], errs[1:]...), nil
}

// IsSuccess reports whether the result holds a value.
func (e Errorable[T]) IsSuccess() bool {
	return e.ok
}

// Value returns the held value and true on success, or the zero value and
// false on failure.
func (e Errorable[T]) Value() (T, bool) {
	if !e.ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Errors returns a copy of the error messages. It is empty on success.
func (e Errorable[T]) Errors() []string {
	if e.ok || len(e.errors) == 0 {
		return nil
	}
	out := make([]string, len(e.errors))
	copy(out, e.errors)
	return out
}

// Match invokes exactly one of the handlers: onSuccess with the value, or
// onFailure with the error messages.
func (e Errorable[T]) Match(onSuccess func(T), onFailure func([]string)) {
	if e.ok {
		onSuccess(e.value)
		return
	}
	onFailure(e.Errors())
}

// Err collapses a failure into a single error value, or nil on success.
func (e Errorable[T]) Err() error {
	if e.ok {
		return nil
	}
	return &Errors{Messages: e.Errors()}
}

// Map transforms a successful value, passing failures through unchanged.
func Map[T, U any](e Errorable[T], f func(T) U) Errorable[U] {
	if !e.ok {
		return Errorable[U]{errors: e.errors}
	}
	return Success(f(e.value))
}

// Bind chains a fallible computation onto a successful value.
func Bind[T, U any](e Errorable[T], f func(T) Errorable[U]) Errorable[U] {
	if !e.ok {
		return Errorable[U]{errors: e.errors}
	}
	return f(e.value)
}

// Apply lifts a field result into an update of the aggregate R. The update
// is only produced when the field was read successfully.
func Apply[T, R any](field Errorable[T], with func(R, T) R) Errorable[func(R) R] {
	return Map(field, func(v T) func(R) R {
		return func(r R) R { return with(r, v) }
	})
}

// Accumulate evaluates every update in order. If any failed, the result is a
// failure holding the concatenation of all failing updates' errors in the
// order given. Otherwise the updates are applied to seed in order.
func Accumulate[R any](seed R, updates ...Errorable[func(R) R]) Errorable[R] {
	var errs []string
	for _, u := range updates {
		if !u.ok {
			errs = append(errs, u.errors...)
		}
	}
	if len(errs) > 0 {
		return Errorable[R]{errors: errs}
	}

	result := seed
	for _, u := range updates {
		result = u.value(result)
	}
	return Success(result)
}

// All merges independent results of the same type. On success the values
// are returned in order; otherwise every error is returned in order.
func All[T any](results ...Errorable[T]) Errorable[[]T] {
	var errs []string
	values := make([]T, 0, len(results))
	for _, r := range results {
		if !r.ok {
			errs = append(errs, r.errors...)
			continue
		}
		values = append(values, r.value)
	}
	if len(errs) > 0 {
		return Errorable[[]T]{errors: errs}
	}
	return Success(values)
}

// Errors is the error form of a failed Errorable.
type Errors struct {
	Messages []string
}

func (e *Errors) Error() string {
	return strings.Join(e.Messages, "; ")
}
