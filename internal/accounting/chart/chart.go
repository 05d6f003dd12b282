// Package chart loads a chart of accounts and its integration mappings from
// YAML and applies it to one scope.
package chart

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

// Chart is the YAML document shape.
type Chart struct {
	Accounts []accounts.CreateInput    `yaml:"accounts"`
	Mappings []mappings.AccountMapping `yaml:"mappings"`
}

// AccountStore is the subset of the account registry used when seeding.
type AccountStore interface {
	Get(ctx context.Context, scope docstore.Scope, id string) (accounts.Account, error)
	Create(ctx context.Context, scope docstore.Scope, input accounts.CreateInput) (accounts.Account, error)
}

// MappingStore persists integration mappings.
type MappingStore interface {
	Put(ctx context.Context, scope docstore.Scope, mapping mappings.AccountMapping) (mappings.AccountMapping, error)
}

// Result counts what Apply changed.
type Result struct {
	Created int
	Skipped int
	Mapped  int
}

// Parse decodes a chart. Unknown keys are rejected and accounts without an
// id take their code as id, so re-applying the same file is a no-op.
func Parse(r io.Reader) (Chart, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var c Chart
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return Chart{}, errors.New("chart: empty document")
		}
		return Chart{}, fmt.Errorf("chart: decode: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Accounts))
	for i := range c.Accounts {
		if c.Accounts[i].ID == "" {
			c.Accounts[i].ID = c.Accounts[i].Code
		}
		id := c.Accounts[i].ID
		if _, dup := seen[id]; dup {
			return Chart{}, fmt.Errorf("chart: account %s listed twice", id)
		}
		seen[id] = struct{}{}
	}
	return c, nil
}

// Apply creates missing accounts in file order (parents first) and upserts
// every mapping. Existing accounts are left untouched.
func Apply(ctx context.Context, scope docstore.Scope, c Chart, accts AccountStore, maps MappingStore) (Result, error) {
	var res Result
	for _, input := range c.Accounts {
		if _, err := accts.Get(ctx, scope, input.ID); err == nil {
			res.Skipped++
			continue
		} else if !errors.Is(err, shared.ErrNotFound) {
			return res, fmt.Errorf("chart: get account %s: %w", input.ID, err)
		}
		if _, err := accts.Create(ctx, scope, input); err != nil {
			return res, fmt.Errorf("chart: create account %s: %w", input.Code, err)
		}
		res.Created++
	}
	for _, m := range c.Mappings {
		if _, err := maps.Put(ctx, scope, m); err != nil {
			return res, fmt.Errorf("chart: map %s %s: %w", m.Module, m.Key, err)
		}
		res.Mapped++
	}
	return res, nil
}
