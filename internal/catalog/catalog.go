// Package catalog loads the plan catalog from a YAML file and syncs it
// into the plans table.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aitools/platform/internal/model"
)

// File is the on-disk catalog layout.
type File struct {
	Plans []model.Plan `yaml:"plans"`
}

// Store receives the parsed catalog.
type Store interface {
	UpsertPlans(ctx context.Context, plans []model.Plan) error
}

// Load reads and validates a catalog file.
func Load(path string) ([]model.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes catalog YAML. Plan names are lowercased and must be unique;
// a free plan is required because profile setup depends on it.
func Parse(data []byte) ([]model.Plan, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if len(f.Plans) == 0 {
		return nil, errors.New("catalog has no plans")
	}

	var errs []string
	seen := make(map[string]bool, len(f.Plans))
	for i := range f.Plans {
		p := &f.Plans[i]
		p.Name = strings.ToLower(strings.TrimSpace(p.Name))
		switch {
		case p.Name == "":
			errs = append(errs, fmt.Sprintf("plan %d: name is required", i))
		case seen[p.Name]:
			errs = append(errs, fmt.Sprintf("plan %q: duplicate name", p.Name))
		}
		seen[p.Name] = true
		if p.ChatCredits < 0 || p.ImageCredits < 0 || p.PriceCents < 0 {
			errs = append(errs, fmt.Sprintf("plan %q: negative values", p.Name))
		}
	}
	if !seen[model.FreePlanName] {
		errs = append(errs, fmt.Sprintf("plan %q is required", model.FreePlanName))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid catalog: %s", strings.Join(errs, "; "))
	}
	return f.Plans, nil
}

// Sync loads path and upserts it into store. It returns the number of plans.
func Sync(ctx context.Context, store Store, path string) (int, error) {
	plans, err := Load(path)
	if err != nil {
		return 0, err
	}
	if err := store.UpsertPlans(ctx, plans); err != nil {
		return 0, fmt.Errorf("upsert plans: %w", err)
	}
	return len(plans), nil
}
