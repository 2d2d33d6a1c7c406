package xid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// New returns a prefixed, time-ordered identifier such as "po_0190f3c2-...".
func New(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return fmt.Sprintf("%s_%s", prefix, id.String())
}

// Number builds a human readable document number from a prefix and an id,
// e.g. Number("PO", "po_0190f3c2-7b1e-...") returns "PO-0190F3C27B1E".
func Number(prefix string, id string) string {
	raw := id
	if idx := strings.IndexByte(raw, '_'); idx >= 0 {
		raw = raw[idx+1:]
	}
	raw = strings.ToUpper(strings.ReplaceAll(raw, "-", ""))
	if len(raw) > 12 {
		raw = raw[len(raw)-12:]
	}
	return prefix + "-" + raw
}
