// Package jobs runs analyses asynchronously off a queue.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrMalformedPayload marks queue bodies that can never be processed.
var ErrMalformedPayload = errors.New("jobs: malformed payload")

// Queue is the transport shared by the SQS and in-memory implementations.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Payload is the queued analysis request.
type Payload struct {
	ID          string `json:"id"`
	UploadID    string `json:"upload_id"`
	UserID      string `json:"user_id,omitempty"`
	TrackStatus bool   `json:"track_status"`
}

type PublishOption func(*Payload)

// WithoutJobTracking disables job status persistence for fire-and-forget work.
func WithoutJobTracking() PublishOption {
	return func(p *Payload) {
		p.TrackStatus = false
	}
}

func encodePayload(payload Payload) (Payload, string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Payload{}, "", fmt.Errorf("jobs: failed to encode payload: %w", err)
	}
	return payload, string(body), nil
}

// DecodePayload parses a queue body. Bodies without an upload id are
// rejected with ErrMalformedPayload.
func DecodePayload(body string) (Payload, error) {
	var payload Payload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload.UploadID == "" {
		return Payload{}, fmt.Errorf("%w: upload_id missing", ErrMalformedPayload)
	}
	return payload, nil
}
