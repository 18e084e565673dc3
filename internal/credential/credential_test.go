package credential

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var idShape = regexp.MustCompile(`^MANAS360-CERT-\d{4}-\d{6}$`)

func fixedClock(year int) func() time.Time {
	return func() time.Time { return time.Date(year, time.March, 4, 10, 0, 0, 0, time.UTC) }
}

func TestGenerate_Format(t *testing.T) {
	gen := NewIdentifierGenerator(fixedClock(2025), func(int) int { return 123 })

	assert.Equal(t, "MANAS360-CERT-2025-000123", gen.Generate())
}

func TestGenerate_SuffixBounds(t *testing.T) {
	var requested int
	gen := NewIdentifierGenerator(fixedClock(2026), func(n int) int {
		requested = n
		return n - 1
	})

	assert.Equal(t, "MANAS360-CERT-2026-999999", gen.Generate())
	assert.Equal(t, 1000000, requested)

	gen = NewIdentifierGenerator(fixedClock(2026), func(int) int { return 0 })
	assert.Equal(t, "MANAS360-CERT-2026-000000", gen.Generate())
}

func TestGenerate_DefaultSourcesMatchPattern(t *testing.T) {
	gen := NewIdentifierGenerator(nil, nil)

	for i := 0; i < 200; i++ {
		id := gen.Generate()
		require.Regexp(t, idShape, id)
		assert.True(t, ValidIdentifier(id))
	}
}

func TestValidIdentifier(t *testing.T) {
	assert.True(t, ValidIdentifier("MANAS360-CERT-2025-000123"))
	assert.True(t, ValidIdentifier("manas360-cert-2025-000123"))
	assert.False(t, ValidIdentifier("MANAS360-CERT-25-000123"))
	assert.False(t, ValidIdentifier("MANAS360-CERT-2025-12345"))
	assert.False(t, ValidIdentifier("MANAS360-CERT-2025-PENDING"))
	assert.False(t, ValidIdentifier(""))
}

func TestDigest_KnownValue(t *testing.T) {
	h := NewHasher("")
	in := DigestInput{
		CertificateID:  "MANAS360-CERT-2025-000123",
		RecipientName:  "Asha Rao",
		ProgramName:    "Mindful Leadership",
		CompletionDate: "2025-01-15",
	}

	assert.Equal(t,
		"MANAS360-CERT-2025-000123|Asha Rao|Mindful Leadership|2025-01-15|MANAS360_PRIVATE_SECRET_2025",
		h.Canonical(in))
	assert.Equal(t, "01f7bcccdf64cf435c842b88790dd89f2eb77211c8d750747bcd7cde35e58c42", h.Digest(in))

	other := NewHasher("other-secret")
	assert.Equal(t, "ac4c53bbc24ebea9aaa30a2e24b48d6646837d99ca43d868866ca701f7ff4389", other.Digest(in))
}

func TestDigest_Deterministic(t *testing.T) {
	h := NewHasher("s3cret")
	in := DigestInput{"MANAS360-CERT-2025-000001", "Ravi", "Coaching 101", "2025-06-01"}

	first := h.Digest(in)
	second := h.Digest(in)

	assert.Equal(t, first, second)
	assert.Len(t, first, DigestLength)
	assert.Regexp(t, `^[0-9a-f]{64}$`, first)
}

func TestDigest_AnyFieldChangesDigest(t *testing.T) {
	h := NewHasher("")
	base := DigestInput{"MANAS360-CERT-2025-000001", "Ravi", "Coaching 101", "2025-06-01"}

	variants := []DigestInput{
		base,
		{"MANAS360-CERT-2025-000002", base.RecipientName, base.ProgramName, base.CompletionDate},
		{base.CertificateID, "Ravi.", base.ProgramName, base.CompletionDate},
		{base.CertificateID, base.RecipientName, "Coaching 102", base.CompletionDate},
		{base.CertificateID, base.RecipientName, base.ProgramName, "2025-06-02"},
	}

	seen := map[string]int{}
	for i, v := range variants {
		d := h.Digest(v)
		if prev, ok := seen[d]; ok {
			t.Fatalf("variant %d collides with variant %d", i, prev)
		}
		seen[d] = i
	}
}

func TestMatches(t *testing.T) {
	h := NewHasher("")
	in := DigestInput{"MANAS360-CERT-2025-000001", "Ravi", "Coaching 101", "2025-06-01"}
	digest := h.Digest(in)

	assert.True(t, h.Matches(in, digest))
	assert.True(t, h.Matches(in, strings.ToUpper(digest)))

	in.RecipientName = "Ravi K"
	assert.False(t, h.Matches(in, digest))
}
