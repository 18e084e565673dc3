package credential

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"time"
)

const (
	identifierPrefix = "MANAS360-CERT"
	suffixSpace      = 1000000 // six decimal digits
)

var identifierPattern = regexp.MustCompile(`(?i)^MANAS360-CERT-\d{4}-\d{6}$`)

// IdentifierGenerator produces public certificate identifiers of the form
// MANAS360-CERT-<year>-<six digit number>. It does not check the registry;
// two calls may return the same identifier.
type IdentifierGenerator struct {
	now  func() time.Time
	intN func(n int) int
}

// NewIdentifierGenerator creates a generator reading the given clock and
// random source. Nil arguments fall back to time.Now and math/rand/v2.
func NewIdentifierGenerator(now func() time.Time, intN func(n int) int) *IdentifierGenerator {
	if now == nil {
		now = time.Now
	}
	if intN == nil {
		intN = rand.IntN
	}
	return &IdentifierGenerator{now: now, intN: intN}
}

// Generate returns a new identifier
func (g *IdentifierGenerator) Generate() string {
	return FormatIdentifier(g.now().Year(), g.intN(suffixSpace))
}

// FormatIdentifier renders year and suffix in the public identifier format
func FormatIdentifier(year, suffix int) string {
	return fmt.Sprintf("%s-%04d-%06d", identifierPrefix, year, suffix)
}

// ValidIdentifier reports whether id has the public identifier shape,
// ignoring case
func ValidIdentifier(id string) bool {
	return identifierPattern.MatchString(id)
}
