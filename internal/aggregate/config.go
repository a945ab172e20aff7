package aggregate

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/apexdesk/enrich-cli/internal/model"
)

// Config is the top-level source policy configuration.
type Config struct {
	History SourcePolicy `yaml:"history" mapstructure:"history"`
	Docs    SourcePolicy `yaml:"docs" mapstructure:"docs"`
	Assets  SourcePolicy `yaml:"assets" mapstructure:"assets"`
}

// SourcePolicy tunes one source adapter.
type SourcePolicy struct {
	Deadline     time.Duration `yaml:"deadline" mapstructure:"deadline"`
	MaxItems     int           `yaml:"max_items" mapstructure:"max_items"`
	MinRelevance float64       `yaml:"min_relevance" mapstructure:"min_relevance"`
}

// DefaultConfig returns the built-in source policy: historical search and
// asset lookups are quick local-ish calls, documentation search is the slow
// one.
func DefaultConfig() Config {
	return Config{
		History: SourcePolicy{Deadline: 2 * time.Second, MaxItems: 5, MinRelevance: 0.2},
		Docs:    SourcePolicy{Deadline: 10 * time.Second, MaxItems: 3},
		Assets:  SourcePolicy{Deadline: 2 * time.Second, MaxItems: 5},
	}
}

// LoadConfig reads source policy from a YAML file, filling unset values from
// the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, eris.Wrapf(err, "aggregate: read config %s", path)
	}

	// The YAML has a top-level "sources" key.
	var wrapper struct {
		Sources Config `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return cfg, eris.Wrap(err, "aggregate: parse config")
	}

	cfg = mergePolicy(cfg, wrapper.Sources)
	return cfg, nil
}

func mergePolicy(base, override Config) Config {
	merge := func(b, o SourcePolicy) SourcePolicy {
		if o.Deadline > 0 {
			b.Deadline = o.Deadline
		}
		if o.MaxItems > 0 {
			b.MaxItems = o.MaxItems
		}
		if o.MinRelevance > 0 {
			b.MinRelevance = o.MinRelevance
		}
		return b
	}
	base.History = merge(base.History, override.History)
	base.Docs = merge(base.Docs, override.Docs)
	base.Assets = merge(base.Assets, override.Assets)
	return base
}

// Ceiling is the overall aggregation deadline: the sum of the per-source
// deadlines, so a hung adapter cannot silently extend the job.
func (c Config) Ceiling() time.Duration {
	return c.History.Deadline + c.Docs.Deadline + c.Assets.Deadline
}

// PolicyFor maps a source kind to its policy.
func (c Config) PolicyFor(kind model.SourceKind) SourcePolicy {
	switch kind {
	case model.SourceTicketHistory:
		return c.History
	case model.SourceDocumentation:
		return c.Docs
	default:
		return c.Assets
	}
}
