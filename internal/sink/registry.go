// Package sink holds the output sink implementations and the factory
// registry that builds them from configuration. Every sink consumes whole
// anonymized batches; none of them ever sees raw samples.
package sink

import (
	"fmt"
	"log"

	"AnonVitals/internal/config"
	"AnonVitals/internal/model"
)

// Factory builds one sink from its configuration entry.
type Factory func(def config.SinkDef) (model.Sink, error)

// registry maps sink kinds to their factory functions.
var registry = make(map[string]Factory)

// Register adds a sink kind to the registry.
func Register(kind string, factory Factory) {
	if _, exists := registry[kind]; exists {
		panic(fmt.Sprintf("sink kind '%s' already registered", kind))
	}
	registry[kind] = factory
}

// Create builds the enabled sinks from the configuration, in declaration
// order. An unknown kind is a configuration error; disabled entries are
// skipped.
func Create(defs []config.SinkDef) ([]model.Sink, error) {
	var sinks []model.Sink

	for _, def := range defs {
		if !def.Enabled {
			continue
		}

		factory, ok := registry[def.Kind]
		if !ok {
			return nil, model.NewConfigurationError("unknown sink kind %q", def.Kind)
		}

		if def.Name == "" {
			def.Name = def.Kind
		}

		log.Printf("Creating sink '%s' (kind: %s)", def.Name, def.Kind)
		s, err := factory(def)
		if err != nil {
			return nil, fmt.Errorf("failed to create sink '%s': %w", def.Name, err)
		}
		sinks = append(sinks, s)
	}

	return sinks, nil
}

// CloseAll closes every sink, logging failures instead of aborting.
func CloseAll(sinks []model.Sink) {
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			log.Printf("Failed to close sink '%s': %v", s.Name(), err)
		}
	}
}
