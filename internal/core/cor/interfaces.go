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
// running a workflow as an ordered sequence of commands that share one
// context. The pipeline's stages are commands; the pipeline itself is a
// chain. A chain stops at the first command that records an error, which is
// exactly the stage-failure semantics the job workflow needs: later stages
// never run, earlier results stay in the context.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are the context keys a BaseChain uses to pipe one
// command's primary output into the next command's primary input.
const (
	CtxIn  = "__IN__"
	CtxOut = "__OUT__"
)

// Context is the shared state object passed through a chain. It carries
// arbitrary keyed data, the errors commands have recorded, and the standard
// Go context used for cancellation and trace propagation.
type Context interface {
	// SetContext sets the standard Go context (cancellation, tracing).
	SetContext(ctx context.Context)

	// GetContext returns the standard Go context.
	GetContext() context.Context

	// Add stores a key-value pair, returning the Context for chaining.
	Add(key string, value any) Context

	// Get returns the value stored under key, or nil.
	Get(key string) any

	// Remove deletes the value stored under key.
	Remove(key string)

	// AddError records an error under the name of the command that hit it.
	AddError(key string, err error)

	// GetErrors returns every recorded error, keyed by command name.
	GetErrors() map[string]error

	// HasErrors reports whether any command has recorded an error.
	HasErrors() bool
}

// Executable is anything with core execution logic driven by a Context.
type Executable interface {
	Execute(context Context)
}

// Command is an atomic, instrumented unit of work inside a chain.
type Command interface {
	Executable

	// GetName returns the command's name, used for logging and telemetry.
	GetName() string

	// GetInputParam returns the context key of the command's primary input.
	GetInputParam() string

	// GetOutputParam returns the context key of the command's primary output.
	GetOutputParam() string

	// IsExecutable reports whether the command can run against the context.
	IsExecutable(context Context) bool

	// GetTracer returns the command's OpenTelemetry tracer.
	GetTracer() trace.Tracer

	// GetMeter returns the command's OpenTelemetry meter.
	GetMeter() metric.Meter

	// GetSuccessCounter returns the counter incremented on success.
	GetSuccessCounter() metric.Int64Counter

	// GetErrorCounter returns the counter incremented on failure.
	GetErrorCounter() metric.Int64Counter
}

// Chain is a Command composed of other Commands, executed in order.
type Chain interface {
	Command

	// ContinueOnFailure configures whether the chain keeps executing after
	// a command records an error. The pipeline leaves this false.
	ContinueOnFailure(bool) Chain

	// AddCommand appends a command to the execution sequence.
	AddCommand(command Command) Chain
}
