package vouchers

import "fmt"

// FormatNumber renders {PREFIX}-{unit-code}-{year}-{sequence}.
func FormatNumber(kind Kind, unitCode string, year int, seq int64) string {
	return fmt.Sprintf("%s-%s-%d-%05d", kind.Prefix(), unitCode, year, seq)
}
