// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package gpu implements the handle-indexed GPU device wrapper: it owns
// the Vulkan device (via driver.GPU) and typed object pools for every
// resource kind it creates, and exposes creation of
// textures, buffers, render passes, framebuffers and pipelines by handle
// rather than by raw pointer.
package gpu

import (
	"errors"
	"fmt"
)

// GpuError wraps a failure returned by the underlying driver, carrying
// enough context to log what operation and resource kind failed.
type GpuError struct {
	Op  string
	Err error
}

func (e *GpuError) Error() string { return fmt.Sprintf("gpu: %s: %v", e.Op, e.Err) }
func (e *GpuError) Unwrap() error { return e.Err }

func newGpuError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &GpuError{Op: op, Err: err}
}

// ErrResourceNotFound is returned by the resource registry when a named
// logical resource has no registration.
var ErrResourceNotFound = errors.New("gpu: resource not found")

// ErrInvalidHandle is returned by Get/Destroy calls against a released
// or sentinel handle.
var ErrInvalidHandle = errors.New("gpu: invalid handle")

// CompileError describes a frame-graph compilation failure: a pass
// declared a read with no producer and no external registration.
type CompileError struct {
	Pass     string
	Resource string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("gpu: compile: pass %q reads %q with no producer", e.Pass, e.Resource)
}

// InvalidConfig describes a pipeline whose attachment formats disagree
// with the render pass it targets, or any other static configuration
// mismatch caught at Init time.
type InvalidConfig struct {
	Reason string
}

func (e *InvalidConfig) Error() string { return "gpu: invalid config: " + e.Reason }
