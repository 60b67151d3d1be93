// Package echo implements a Lambda function that returns its triggering
// event unchanged inside a response envelope.
package echo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/lambdacontext"
)

// Response is the envelope returned to the Lambda runtime.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type body struct {
	EchoedInput interface{} `json:"echoed_input"`
}

// SerializationError is returned when the event cannot be encoded as JSON.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("unable to serialize event: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// Echo wraps event in a 200 response whose body is
// {"echoed_input": <event>}.
func Echo(event interface{}) (*Response, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body{EchoedInput: event}); err != nil {
		return nil, &SerializationError{Err: err}
	}
	return &Response{
		StatusCode: http.StatusOK,
		Body:       string(bytes.TrimSpace(buf.Bytes())),
	}, nil
}

// Handler is the Lambda entry point. The event is kept as raw JSON so that
// field order and number precision survive the round trip.
func Handler(ctx context.Context, event json.RawMessage) (*Response, error) {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		log.Printf("echoing %d byte event for request %s", len(event), lc.AwsRequestID)
	}
	if len(event) == 0 {
		event = json.RawMessage("null")
	}
	return Echo(event)
}
