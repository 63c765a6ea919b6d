// Package ptrs provides a helper for taking the address of a value in a
// single expression, mostly for populating optional (pointer) model fields.
package ptrs

// Ptr is the generic "&v" you always wanted.
func Ptr[T any](v T) *T {
	return &v
}
