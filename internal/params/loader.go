package params

import (
	"context"
	"errors"
	"fmt"

	"alcyxob/climb-sim/internal/repository"

	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/bson"
)

// ErrNoActiveParameterSet means the referenced set cannot be found. Simulating without
// it would silently fall back to built-in defaults, so callers must treat it as fatal.
var ErrNoActiveParameterSet = errors.New("no active parameter set")

// Loader reads parameter sets from the parameter_sets table.
type Loader struct {
	reader repository.Reader
}

// NewLoader creates a Loader over any row reader.
func NewLoader(reader repository.Reader) *Loader {
	return &Loader{reader: reader}
}

// Load fetches the set with the given reference.
func (l *Loader) Load(ctx context.Context, ref string) (*Set, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrNoActiveParameterSet)
	}
	var set Set
	err := l.reader.FindOne(ctx, repository.TableParameterSets, bson.M{"_id": ref}, &set)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrNoActiveParameterSet, ref)
		}
		return nil, fmt.Errorf("load parameter set %q: %w", ref, err)
	}
	if set.Values == nil {
		set.Values = map[string]any{}
	}
	return &set, nil
}

// fileLayout is the YAML layout accepted by LoadFile:
//
//	parameter_sets:
//	  - ref: default-v1
//	    version: "1"
//	    values:
//	      adherence:
//	        bias: 2.0
type fileLayout struct {
	Sets []Set `mapstructure:"parameter_sets"`
}

// LoadFile reads parameter sets from a YAML/JSON/TOML file.
func LoadFile(path string) ([]Set, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read parameter file %s: %w", path, err)
	}
	var layout fileLayout
	if err := v.Unmarshal(&layout); err != nil {
		return nil, fmt.Errorf("decode parameter file %s: %w", path, err)
	}
	for i := range layout.Sets {
		if layout.Sets[i].Ref == "" {
			return nil, fmt.Errorf("parameter file %s: set %d has no ref", path, i)
		}
		if layout.Sets[i].Values == nil {
			layout.Sets[i].Values = map[string]any{}
		}
	}
	return layout.Sets, nil
}

// Seed inserts sets that are not stored yet. The writer must be allowed to write
// parameter_sets; the simulation handle is not.
func Seed(ctx context.Context, store repository.Store, sets []Set) error {
	for _, s := range sets {
		err := store.Insert(ctx, repository.TableParameterSets, s)
		if err != nil && !errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("seed parameter set %q: %w", s.Ref, err)
		}
	}
	return nil
}
