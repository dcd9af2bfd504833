// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cor (Chain of Responsibility) provides the building blocks for
// running workflows. This file holds BaseContext, the default Context
// implementation: a property bag shared by every command of one workflow
// execution. It is not safe for concurrent mutation — a chain runs its
// commands strictly sequentially, which is the only access pattern here.
package cor

import "context"

// BaseContext is the default Context implementation.
type BaseContext struct {
	data    map[string]any
	errors  map[string]error
	context context.Context
}

// NewBaseContext returns an empty, ready-to-use context.
func NewBaseContext() Context {
	return &BaseContext{
		data:   make(map[string]any),
		errors: make(map[string]error),
	}
}

// SetContext sets the underlying Go context, used by BaseChain to scope
// OpenTelemetry spans per command.
func (c *BaseContext) SetContext(ctx context.Context) {
	c.context = ctx
}

// GetContext returns the underlying Go context.
func (c *BaseContext) GetContext() context.Context {
	return c.context
}

// Add stores a key-value pair and returns the context for chaining.
func (c *BaseContext) Add(key string, value any) Context {
	c.data[key] = value
	return c
}

// Get returns the value stored under key, or nil when absent.
func (c *BaseContext) Get(key string) any {
	return c.data[key]
}

// Remove deletes a key-value pair.
func (c *BaseContext) Remove(key string) {
	delete(c.data, key)
}

// AddError records an error under the producing command's name.
func (c *BaseContext) AddError(key string, err error) {
	c.errors[key] = err
}

// GetErrors returns every recorded error keyed by command name.
func (c *BaseContext) GetErrors() map[string]error {
	return c.errors
}

// HasErrors reports whether any error has been recorded.
func (c *BaseContext) HasErrors() bool {
	return len(c.errors) > 0
}
