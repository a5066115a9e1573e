// Package harvest runs report definitions against a set of accounts: it
// fans work units out to a pool of fetch workers, partitions the outcomes,
// writes successes to a sink and reports failures.
package harvest

import "github.com/ajitpratap0/adharvest/pkg/report"

// WorkUnit is one (account, report definition) pair
type WorkUnit struct {
	// Index is the position of the unit in generation order
	Index      int
	AccountID  string
	Definition report.Definition
}

// GenerateUnits returns one unit per account and definition, account-major.
// Duplicate accounts are kept, each producing its own units.
func GenerateUnits(accounts []string, definitions []report.Definition) []WorkUnit {
	units := make([]WorkUnit, 0, len(accounts)*len(definitions))
	for _, account := range accounts {
		for _, def := range definitions {
			units = append(units, WorkUnit{
				Index:      len(units),
				AccountID:  account,
				Definition: def,
			})
		}
	}
	return units
}
