// Package classifier infers which catalog entry, if any, a raw exploit
// attempt triggered. An explicit flag token in the backend response is
// authoritative and bypasses the heuristics entirely; the heuristic rules are
// a fallback, tolerant of false negatives, evaluated in a fixed priority
// order where the first match wins.
package classifier

import (
	"strings"

	"github.com/ctfquest/internal/domain"
)

// Attempt is one exploit attempt: the raw payload the user supplied, the
// structured response if the call succeeded, and the error if it failed.
type Attempt struct {
	Payload string
	Result  *domain.ExploitResult
	Err     error
}

// features are the structural signals a rule may test. They are derived once
// per attempt so rules stay independent of each other.
type features struct {
	payload    string // lower-cased
	rowCount   int
	userFields bool // rows expose username/password-style columns
	errPresent bool
}

// rule is one named predicate bound to a catalog entry id.
type rule struct {
	name   string
	vulnID int
	match  func(f features) bool
}

// Classifier evaluates the rule table against attempts. It holds no state
// beyond the table itself; classification is pure with respect to its inputs.
type Classifier struct {
	rules []rule
}

// New builds the classifier with its fixed rule order: bypass detection
// before aggregation detection before structural-leak detection before
// error-based blind detection.
func New() *Classifier {
	return &Classifier{rules: []rule{
		{
			name:   "login-bypass",
			vulnID: domain.VulnLoginBypass,
			match: func(f features) bool {
				return (strings.Contains(f.payload, "' or '1'='1") ||
					strings.Contains(f.payload, "' or 1=1--")) && f.rowCount > 0
			},
		},
		{
			name:   "hidden-records",
			vulnID: domain.VulnHiddenRecords,
			match: func(f features) bool {
				return (strings.Contains(f.payload, "' or 1=1") ||
					strings.Contains(f.payload, "%' or")) && f.rowCount > 3
			},
		},
		{
			name:   "union-extract",
			vulnID: domain.VulnUnionExtract,
			match: func(f features) bool {
				if strings.Contains(f.payload, "union") && strings.Contains(f.payload, "select") {
					return true
				}
				// Cross-table leakage without an explicit UNION payload still
				// counts as a structural leak.
				return f.userFields && f.rowCount > 0
			},
		},
		{
			name:   "blind-boolean",
			vulnID: domain.VulnBlindBoolean,
			match: func(f features) bool {
				return (strings.Contains(f.payload, "' and 1=1") ||
					strings.Contains(f.payload, "' and 1=2")) && f.errPresent
			},
		},
	}}
}

// Classify returns the matching catalog entry for an attempt, or false when
// nothing matched. A miss is not an error. The entries slice is the match
// target set; when it is empty (catalog not loaded) classification is
// skipped, never guessed.
func (c *Classifier) Classify(entries []domain.CatalogEntry, a Attempt) (domain.CatalogEntry, bool) {
	if len(entries) == 0 {
		return domain.CatalogEntry{}, false
	}

	// Primary, trusted path: the backend named the flag itself.
	if a.Result != nil && a.Result.Flag != "" {
		for _, e := range entries {
			if e.FlagToken == a.Result.Flag {
				return e, true
			}
		}
		return domain.CatalogEntry{}, false
	}

	f := deriveFeatures(a)
	for _, r := range c.rules {
		if !r.match(f) {
			continue
		}
		for _, e := range entries {
			if e.ID == r.vulnID {
				return e, true
			}
		}
		// Rule matched but its target is not in the catalog; rules are
		// independent, so later ones do not get a turn.
		return domain.CatalogEntry{}, false
	}
	return domain.CatalogEntry{}, false
}

func deriveFeatures(a Attempt) features {
	f := features{
		payload:    strings.ToLower(a.Payload),
		errPresent: a.Err != nil,
	}
	if a.Result != nil {
		f.rowCount = len(a.Result.Rows)
		f.userFields = hasUserFields(a.Result.Rows)
	}
	return f
}

// hasUserFields reports whether any row carries both a username-like and a
// password-like column, the signature of cross-table leakage.
func hasUserFields(rows []domain.ResultRow) bool {
	for _, row := range rows {
		var user, pass bool
		for key := range row {
			switch strings.ToLower(key) {
			case "username", "user", "login":
				user = true
			case "password", "pass", "pwd", "password_hash":
				pass = true
			}
		}
		if user && pass {
			return true
		}
	}
	return false
}
