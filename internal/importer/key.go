package importer

import (
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/MrJamesThe3rd/plazos/internal/payment"
)

// rowHash fingerprints the fields that identify a payment line.
func rowHash(f Format, p payment.RegisterParams) uint64 {
	h := fnv.New64a()

	for _, field := range []string{
		string(f),
		p.PaidOn.Format("2006-01-02"),
		strconv.FormatInt(p.Amount, 10),
		string(p.Method),
		p.Reference,
		p.Notes,
	} {
		_, _ = h.Write([]byte(field))
		_, _ = h.Write([]byte{0})
	}

	return h.Sum64()
}

// importKey derives the idempotency key of the n-th identical line of a
// file, so genuine repeats inside one sheet stay distinct while a second
// upload of the same sheet maps onto the same keys.
func importKey(hash uint64, n int) string {
	if n == 0 {
		return fmt.Sprintf("import-%016x", hash)
	}

	return fmt.Sprintf("import-%016x-%d", hash, n)
}
