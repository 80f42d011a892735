// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package shadercache loads SPIR-V binaries from disk and caches the
// resulting driver.ShaderCode by path, so that passes sharing a shader
// (e.g. a fullscreen-triangle vertex shader used by several
// post-process passes) only pay the module-creation cost once.
package shadercache

import (
	"fmt"
	"os"
	"sync"

	"github.com/nyxforge/framegraph/driver"
)

// Cache maps shader file paths to created driver.ShaderCode.
type Cache struct {
	gpu     driver.GPU
	entries map[string]driver.ShaderCode
	sync.Mutex
}

// New returns a Cache that creates shader modules against gpu.
func New(gpu driver.GPU) *Cache {
	return &Cache{gpu: gpu, entries: make(map[string]driver.ShaderCode)}
}

// Load returns the driver.ShaderCode for the SPIR-V binary at path,
// reading and creating it on first use and returning the cached module
// on every subsequent call.
func (c *Cache) Load(path string) (driver.ShaderCode, error) {
	c.Lock()
	defer c.Unlock()
	if sc, ok := c.entries[path]; ok {
		return sc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shadercache: %w", err)
	}
	sc, err := c.gpu.NewShaderCode(data)
	if err != nil {
		return nil, fmt.Errorf("shadercache: %s: %w", path, err)
	}
	c.entries[path] = sc
	return sc, nil
}

// Destroy destroys every cached shader module and clears the cache.
func (c *Cache) Destroy() {
	c.Lock()
	defer c.Unlock()
	for path, sc := range c.entries {
		sc.Destroy()
		delete(c.entries, path)
	}
}
