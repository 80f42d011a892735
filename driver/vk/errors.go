// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/nyxforge/framegraph/driver"
)

// newError converts a non-success vk.Result into an error that wraps
// one of driver's sentinel errors, so callers can use errors.Is
// against driver.ErrNoHostMemory/driver.ErrNoDeviceMemory/driver.ErrFatal
// regardless of backend.
func newError(ret vk.Result, call string) error {
	switch ret {
	case vk.ErrorOutOfHostMemory:
		return fmt.Errorf("vk: %s: %w", call, driver.ErrNoHostMemory)
	case vk.ErrorOutOfDeviceMemory:
		return fmt.Errorf("vk: %s: %w", call, driver.ErrNoDeviceMemory)
	case vk.ErrorDeviceLost:
		return fmt.Errorf("vk: %s: %w", call, driver.ErrFatal)
	default:
		return fmt.Errorf("vk: %s failed: result %d", call, ret)
	}
}
