package errors

import (
	"fmt"
	"testing"
)

func BenchmarkNewAppError(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = NewAppError(ErrCodeInvalidInput, "test error", nil)
	}
}

func BenchmarkWrapError(b *testing.B) {
	originalErr := fmt.Errorf("original")
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = WrapError(originalErr, ErrCodeRegistryUnavailable, "wrapped error")
	}
}

func BenchmarkHTTPStatus(b *testing.B) {
	err := NewAppError(ErrCodeInvalidInput, "test error", nil)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = err.HTTPStatus()
	}
}
