// Package queue defines the background job published for each uploaded
// document.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// ProcessDocumentTask is scheduled each time a PDF is uploaded.
	ProcessDocumentTask = "document:process"
)

// ProcessPayload tells the worker which object to read.
type ProcessPayload struct {
	DocumentID string `json:"document_id"`
	ObjectKey  string `json:"object_key"`
	FileName   string `json:"file_name"`
}

// NewProcessTask encodes payload into an asynq task.
func NewProcessTask(payload ProcessPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(ProcessDocumentTask, data, asynq.MaxRetry(5)), nil
}

// DecodeProcessPayload is the inverse of NewProcessTask.
func DecodeProcessPayload(task *asynq.Task) (ProcessPayload, error) {
	var p ProcessPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return ProcessPayload{}, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}

// Enqueuer publishes processing jobs to Redis through asynq.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// Dispatch enqueues a processing job.
func (e *Enqueuer) Dispatch(ctx context.Context, payload ProcessPayload) error {
	task, err := NewProcessTask(payload)
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue process task: %w", err)
	}
	return nil
}
