// Package staging pushes media payloads into the analysis provider's file
// staging area, waits for them to become processable, and guarantees their
// removal when a job finishes.
package staging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/generative-ai-go/genai"
)

// State is the lifecycle state of a staged file as reported by the provider.
type State string

// Staged file states
const (
	StateUnknown State = "unknown"
	StatePending State = "pending"
	StateActive  State = "active"
	StateFailed  State = "failed"
)

// Descriptor is the transient handle to a staged file. It is owned by exactly
// one job's execution and must be released when that job finishes.
type Descriptor struct {
	RemoteID  string
	RemoteURI string
	MIMEType  string
	State     State
}

// FileAPI is the subset of the provider file API the staging layer needs.
// *genai.Client satisfies it directly.
type FileAPI interface {
	UploadFile(ctx context.Context, name string, r io.Reader, opts *genai.UploadFileOptions) (*genai.File, error)
	GetFile(ctx context.Context, name string) (*genai.File, error)
	DeleteFile(ctx context.Context, name string) error
}

// Client stages files with the analysis provider.
type Client struct {
	api FileAPI
}

// NewClient creates a staging client over the given provider file API.
func NewClient(api FileAPI) *Client {
	return &Client{api: api}
}

// Stage uploads the payload to the provider's staging area in a single
// transfer and returns the resulting descriptor. No retry is attempted here;
// retry policy lives with the model-fallback invoker, not with staging.
func (c *Client) Stage(ctx context.Context, payload []byte, mimeType, displayName string) (*Descriptor, error) {
	file, err := c.api.UploadFile(ctx, "", bytes.NewReader(payload), &genai.UploadFileOptions{
		DisplayName: displayName,
		MIMEType:    mimeType,
	})
	if err != nil {
		return nil, &TransferError{Cause: err}
	}
	if file == nil || file.Name == "" {
		return nil, &InitiationError{Cause: fmt.Errorf("provider returned no file handle")}
	}

	return &Descriptor{
		RemoteID:  file.Name,
		RemoteURI: file.URI,
		MIMEType:  mimeType,
		State:     stateOf(file),
	}, nil
}

// AwaitActive polls the provider until the descriptor reaches the active
// state or the timeout elapses. The poll uses a fixed interval; the provider's
// activation latency is small and bounded, so no backoff is applied.
func (c *Client) AwaitActive(ctx context.Context, desc *Descriptor, timeout, interval time.Duration) (*Descriptor, error) {
	start := time.Now()
	last := StateUnknown

	for {
		file, err := c.api.GetFile(ctx, desc.RemoteID)
		if err == nil {
			last = stateOf(file)
			switch last {
			case StateActive:
				desc.RemoteURI = file.URI
				desc.State = StateActive
				return desc, nil
			case StateFailed:
				return nil, fmt.Errorf("staged file %s entered failed state", desc.RemoteID)
			}
		} else if ctx.Err() != nil {
			return nil, &ReadinessTimeoutError{LastState: last, Elapsed: time.Since(start)}
		}

		if time.Since(start) >= timeout {
			return nil, &ReadinessTimeoutError{LastState: last, Elapsed: time.Since(start)}
		}

		select {
		case <-ctx.Done():
			return nil, &ReadinessTimeoutError{LastState: last, Elapsed: time.Since(start)}
		case <-time.After(interval):
		}
	}
}

// Release deletes the staged file, best effort. It is safe to call with a nil
// descriptor (the job never obtained a handle) and must never influence the
// job's recorded outcome: failures are logged and discarded.
func (c *Client) Release(ctx context.Context, desc *Descriptor) {
	if desc == nil || desc.RemoteID == "" {
		return
	}
	if err := c.api.DeleteFile(ctx, desc.RemoteID); err != nil {
		log.Printf("Warning: failed to delete staged file %s: %v", desc.RemoteID, err)
	}
}

func stateOf(file *genai.File) State {
	if file == nil {
		return StateUnknown
	}
	switch file.State {
	case genai.FileStateProcessing:
		return StatePending
	case genai.FileStateActive:
		return StateActive
	case genai.FileStateFailed:
		return StateFailed
	default:
		return StateUnknown
	}
}
