// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package glfwswap is a reference external.Swapchain built on
// go-gl/glfw. It shows how a real windowing collaborator plugs into
// the core via the external package's interfaces without the core
// ever importing glfw itself.
package glfwswap

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/nyxforge/framegraph/driver"
	"github.com/nyxforge/framegraph/external"
)

// Window owns a glfw window and the driver.Swapchain presenting to
// it. It implements both driver.SurfaceProvider (so a Presenter-
// capable GPU can create the swapchain) and external.Swapchain (so
// the frame graph's final pass can present to it).
type Window struct {
	win *glfw.Window
	gpu driver.Presenter
	sc  driver.Swapchain
}

// New creates a glfw window of the given size and title and a
// swapchain presenting to it through gpu. gpu must implement
// driver.Presenter; a GPU opened by a backend without presentation
// support (e.g. a headless compute driver) makes this fail with
// driver.ErrCannotPresent.
func New(gpu driver.GPU, width, height int, title string) (*Window, error) {
	pres, ok := gpu.(driver.Presenter)
	if !ok {
		return nil, driver.ErrCannotPresent
	}
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfwswap: glfw.Init: %w", err)
	}
	if !glfw.VulkanSupported() {
		return nil, driver.ErrCannotPresent
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("glfwswap: glfw.CreateWindow: %w", err)
	}

	w := &Window{win: win, gpu: pres}
	sc, err := pres.NewSwapchain(w, 2)
	if err != nil {
		win.Destroy()
		return nil, err
	}
	w.sc = sc
	return w, nil
}

// RequiredInstanceExtensions implements driver.SurfaceProvider.
func (w *Window) RequiredInstanceExtensions() []string {
	return glfw.GetRequiredInstanceExtensions()
}

// CreateSurface implements driver.SurfaceProvider.
func (w *Window) CreateSurface(instance uintptr) (uintptr, error) {
	surf, err := w.win.CreateWindowSurface(vk.Instance(unsafe.Pointer(instance)), nil)
	if err != nil {
		return 0, fmt.Errorf("glfwswap: CreateWindowSurface: %w", err)
	}
	return surf, nil
}

// Width implements driver.SurfaceProvider.
func (w *Window) Width() int {
	width, _ := w.win.GetFramebufferSize()
	return width
}

// Height implements driver.SurfaceProvider.
func (w *Window) Height() int {
	_, height := w.win.GetFramebufferSize()
	return height
}

// Acquire implements external.Swapchain.
func (w *Window) Acquire() (driver.ImageView, int, external.Extent2D, error) {
	views := w.sc.Views()
	// Next requires a command buffer only so backends can record the
	// acquire-time layout transition against it; the frame graph's own
	// command buffer is supplied by the caller through the cb
	// parameter of Execute, which this adapter does not have access
	// to, so callers pass nil and backends that need one allocate it
	// lazily from the GPU instead.
	idx, err := w.sc.Next(nil)
	if err != nil {
		return nil, -1, external.Extent2D{}, err
	}
	return views[idx], idx, external.Extent2D{Width: w.Width(), Height: w.Height()}, nil
}

// Present implements external.Swapchain.
func (w *Window) Present(index int) error {
	return w.sc.Present(index, nil)
}

// Recreate implements external.Swapchain.
func (w *Window) Recreate() error {
	return w.sc.Recreate()
}

// ShouldClose reports whether the user requested the window to close.
func (w *Window) ShouldClose() bool { return w.win.ShouldClose() }

// PollEvents processes pending window/input events.
func PollEvents() { glfw.PollEvents() }

// Destroy releases the swapchain and the glfw window.
func (w *Window) Destroy() {
	if w.sc != nil {
		w.sc.Destroy()
		w.sc = nil
	}
	if w.win != nil {
		w.win.Destroy()
		w.win = nil
	}
}
