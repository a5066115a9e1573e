package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/adharvest/pkg/errors"
)

// Example demonstrates basic error creation and wrapping.
func Example() {
	err := errors.New(errors.ErrorTypeValidation, "invalid campaign status").
		WithDetail("value", "ARCHIVED")

	fmt.Println(err.Error())

	// Output:
	// validation: invalid campaign status
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.EOF, errors.ErrorTypeFile, "failed to read databases file").
		WithDetail("file", "databases.json")

	if errors.IsType(err, errors.ErrorTypeFile) {
		fmt.Println("This is a file error")
	}
	if errors.Is(err, io.EOF) {
		fmt.Println("Original error was EOF")
	}

	// Output:
	// This is a file error
	// Original error was EOF
}

// ExampleIsRetryable shows which errors the fetch worker retries.
func ExampleIsRetryable() {
	apiErr := errors.New(errors.ErrorTypeAPI, "INTERNAL_ERROR")
	structural := errors.New(errors.ErrorTypeStructural, "unexpected value at ad_group_ad.ad")

	fmt.Println(errors.IsRetryable(apiErr))
	fmt.Println(errors.IsRetryable(structural))

	// Output:
	// true
	// false
}
