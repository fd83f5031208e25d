// Package strategy holds the quote-generation logic. Strategies are pure
// with respect to their inputs: identical tick sequences and ledger views
// always yield identical intents, which is what makes a backtest comparable
// to a live run.
package strategy

import (
	"fmt"
	"sort"

	"github.com/Jetpackjules/Kalshi-Trader/internal/domain"
)

// LedgerView is the read-only slice of ledger state a strategy may consult.
type LedgerView struct {
	Inventory       int64        // signed position on the ticker being evaluated
	RemainingBudget domain.Cents // daily budget left, floored at cash
	MaxInventory    int64
}

// Strategy turns a market snapshot into the desired resting orders for that
// ticker. Implementations must not issue I/O or mutate anything outside
// their own deterministic state.
type Strategy interface {
	Name() string
	Evaluate(snap domain.MarketSnapshot, view LedgerView) []domain.OrderIntent
}

// factories maps strategy names to constructors. Parameters are validated
// eagerly: unknown keys are rejected at construction, never ignored.
var factories = map[string]func(params map[string]float64) (Strategy, error){
	"maker":   newMaker,
	"trendno": newTrendNo,
}

// New constructs a named strategy from its raw parameter map.
func New(name string, params map[string]float64) (Strategy, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (have: %v)", name, Names())
	}
	return factory(params)
}

// Names lists the registered strategy names, sorted.
func Names() []string {
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// rejectUnknown fails construction when params contains a key outside known.
func rejectUnknown(params map[string]float64, known ...string) error {
	allowed := make(map[string]bool, len(known))
	for _, k := range known {
		allowed[k] = true
	}
	for k := range params {
		if !allowed[k] {
			return fmt.Errorf("unknown strategy parameter %q (known: %v)", k, known)
		}
	}
	return nil
}

func intParam(params map[string]float64, key string, def int64) int64 {
	if v, ok := params[key]; ok {
		return int64(v)
	}
	return def
}

func floatParam(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}
