// Package either holds a small two-variant value type. Left conventionally
// carries a failure or "not yet" state, Right carries the successful value.
package either

// Either holds exactly one of L or R.
type Either[L, R any] struct {
	left    L
	right   R
	isRight bool
}

// Left wraps a left value.
func Left[L, R any](v L) Either[L, R] {
	return Either[L, R]{left: v}
}

// Right wraps a right value.
func Right[L, R any](v R) Either[L, R] {
	return Either[L, R]{right: v, isRight: true}
}

func (e Either[L, R]) IsLeft() bool  { return !e.isRight }
func (e Either[L, R]) IsRight() bool { return e.isRight }

// LeftValue returns the left value and whether it is set.
func (e Either[L, R]) LeftValue() (L, bool) { return e.left, !e.isRight }

// RightValue returns the right value and whether it is set.
func (e Either[L, R]) RightValue() (R, bool) { return e.right, e.isRight }

// Foreach calls fn with the right value, if any.
func (e Either[L, R]) Foreach(fn func(R)) {
	if e.isRight {
		fn(e.right)
	}
}

// ForeachLeft calls fn with the left value, if any.
func (e Either[L, R]) ForeachLeft(fn func(L)) {
	if !e.isRight {
		fn(e.left)
	}
}

// Map transforms the right value, leaving a left untouched. Go methods can't
// introduce type parameters so this is a function.
func Map[L, R, T any](e Either[L, R], fn func(R) T) Either[L, T] {
	if e.isRight {
		return Right[L](fn(e.right))
	}
	return Left[L, T](e.left)
}

// MapLeft transforms the left value, leaving a right untouched.
func MapLeft[L, R, T any](e Either[L, R], fn func(L) T) Either[T, R] {
	if e.isRight {
		return Right[T](e.right)
	}
	return Left[T, R](fn(e.left))
}

// Fold collapses either side into a single value.
func Fold[L, R, T any](e Either[L, R], onLeft func(L) T, onRight func(R) T) T {
	if e.isRight {
		return onRight(e.right)
	}
	return onLeft(e.left)
}

// FromResult converts a conventional (value, error) pair.
func FromResult[R any](v R, err error) Either[error, R] {
	if err != nil {
		return Left[error, R](err)
	}
	return Right[error](v)
}
