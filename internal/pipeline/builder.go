package pipeline

import (
	"firestige.xyz/dnsreflect/internal/diag"
	"firestige.xyz/dnsreflect/internal/engine"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using Config directly.
type Builder struct {
	config Config
}

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithID sets the pipeline ID.
func (b *Builder) WithID(id int) *Builder {
	b.config.ID = id
	return b
}

// WithName sets the metrics and log label.
func (b *Builder) WithName(name string) *Builder {
	b.config.Name = name
	return b
}

// WithSource sets the frame source.
func (b *Builder) WithSource(s Source) *Builder {
	b.config.Source = s
	return b
}

// WithEngine sets the decision engine.
func (b *Builder) WithEngine(e *engine.Engine) *Builder {
	b.config.Engine = e
	return b
}

// WithEmitter sets the diagnostic emitter.
func (b *Builder) WithEmitter(e diag.Emitter) *Builder {
	b.config.Emitter = e
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() *Pipeline {
	return New(b.config)
}
