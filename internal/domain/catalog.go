package domain

// Well-known catalog entry IDs. The classifier's heuristic rules target these;
// the catalog itself remains the source of names, points and tokens.
const (
	VulnIDORProfiles   = 1
	VulnInfoDisclosure = 2
	VulnWeakAuth       = 3
	VulnLoginBypass    = 4
	VulnHiddenRecords  = 5
	VulnUnionExtract   = 6
	VulnBlindBoolean   = 7
	VulnRecipeLock     = 8
	VulnPrivateRecipe  = 9
	VulnPasswordChange = 10
	VulnRecipeDelete   = 11
)

// CatalogEntry is an immutable description of one exploitable vulnerability.
// FlagToken is write-only input to the redemption protocol: it must never be
// rendered through any UI path other than the captured-flags history.
type CatalogEntry struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Difficulty   string `json:"difficulty"`
	Points       int    `json:"points"`
	FlagToken    string `json:"flag_hash"`
	SolutionHint string `json:"solution_hint"`
}
