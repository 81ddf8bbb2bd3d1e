package compare

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"dataflow/internal/core"
)

// Fingerprint computes a content hash of a table's structural shape. Two
// tables with the same columns, keys, indexes, and foreign keys (regardless
// of declaration order) produce the same fingerprint, which lets the
// comparator skip tables that have not changed since the last comparison.
func Fingerprint(t *core.Table) string {
	var lines []string

	for _, c := range t.Columns {
		def := ""
		if c.Default != nil {
			def = *c.Default
		}
		lines = append(lines, fmt.Sprintf("col|%s|%s|%t|%t|%t|%s",
			strings.ToLower(c.Name), strings.ToLower(c.TypeRaw),
			c.Nullable, c.PrimaryKey, c.Unique, def))
	}
	for _, i := range t.Indexes {
		lines = append(lines, fmt.Sprintf("idx|%s|%t",
			strings.ToLower(strings.Join(i.Columns, ",")), i.Unique))
	}
	for _, fk := range t.ForeignKeys {
		lines = append(lines, fmt.Sprintf("fk|%s|%s|%s",
			strings.ToLower(fk.Column), strings.ToLower(fk.TargetTable),
			strings.ToLower(fk.TargetColumn)))
	}

	sort.Strings(lines)

	h := sha256.New()
	h.Write([]byte(strings.ToLower(t.Name)))
	h.Write([]byte{'\n'})
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// pairFingerprint hashes both sides of a comparison together, so a change to
// either the declared model or the live table invalidates the cached result.
func pairFingerprint(model, db *core.Table) string {
	h := sha256.New()
	h.Write([]byte(Fingerprint(model)))
	h.Write([]byte{'|'})
	h.Write([]byte(Fingerprint(db)))
	return hex.EncodeToString(h.Sum(nil))
}
