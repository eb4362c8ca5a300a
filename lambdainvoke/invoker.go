// Package lambdainvoke wraps synchronous and event-style Lambda invocation.
package lambdainvoke

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

// LambdaAPI is the slice of the Lambda client the invoker needs.
type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// FunctionError reports that the invoked function itself failed; the payload
// carries the error document returned by the runtime.
type FunctionError struct {
	FunctionName string
	ErrorType    string
	Payload      []byte
}

func (e *FunctionError) Error() string {
	return fmt.Sprintf("lambdainvoke: function %s failed: %s", e.FunctionName, e.ErrorType)
}

// Invoker calls Lambda functions.
type Invoker struct {
	client LambdaAPI
}

func New(client LambdaAPI) *Invoker {
	return &Invoker{client: client}
}

// Invoke calls fn synchronously with payload and returns the response
// payload. A handled or unhandled error inside the function surfaces as a
// *FunctionError, distinct from transport failures.
func (i *Invoker) Invoke(ctx context.Context, fn string, payload []byte) ([]byte, error) {
	out, err := i.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(fn),
		Payload:        payload,
		InvocationType: types.InvocationTypeRequestResponse,
	})
	if err != nil {
		return nil, fmt.Errorf("lambdainvoke: invoke %s: %w", fn, err)
	}
	if out.FunctionError != nil {
		return nil, &FunctionError{
			FunctionName: fn,
			ErrorType:    aws.ToString(out.FunctionError),
			Payload:      out.Payload,
		}
	}
	return out.Payload, nil
}

// InvokeAsync queues an event-style invocation and returns once Lambda has
// accepted it. Function failures are not observable on this path.
func (i *Invoker) InvokeAsync(ctx context.Context, fn string, payload []byte) error {
	_, err := i.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(fn),
		Payload:        payload,
		InvocationType: types.InvocationTypeEvent,
	})
	if err != nil {
		return fmt.Errorf("lambdainvoke: invoke async %s: %w", fn, err)
	}
	return nil
}
