package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/safehug/internal/jobs"
	"github.com/wolfman30/safehug/pkg/logging"
)

type scriptedHandler struct {
	results map[string]error
	seen    []string
}

func (s *scriptedHandler) Handle(_ context.Context, body string) error {
	s.seen = append(s.seen, body)
	return s.results[body]
}

func TestHandleReportsRetryableFailures(t *testing.T) {
	h := &scriptedHandler{results: map[string]error{
		"ok":        nil,
		"bad":       fmt.Errorf("decode: %w", jobs.ErrMalformedPayload),
		"transient": errors.New("classifier timeout"),
	}}
	evt := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m1", Body: "ok"},
		{MessageId: "m2", Body: "bad"},
		{MessageId: "m3", Body: "transient"},
	}}

	resp := handle(context.Background(), h, logging.Discard(), evt)

	assert.Equal(t, []string{"ok", "bad", "transient"}, h.seen)
	assert.Equal(t, []events.SQSBatchItemFailure{{ItemIdentifier: "m3"}}, resp.BatchItemFailures)
}

func TestHandleEmptyBatch(t *testing.T) {
	resp := handle(context.Background(), &scriptedHandler{}, logging.Discard(), events.SQSEvent{})
	assert.Empty(t, resp.BatchItemFailures)
}
