package alarm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JPZU/InsightIQ/pkg/utils"
)

// Fingerprint derives the dedup key for one violating row: column/value
// pairs sorted by column name, stringified and hashed. The same data
// always yields the same fingerprint regardless of map iteration order.
// Fingerprints are set-membership keys, never shown to users.
func Fingerprint(triggeredData map[string]any) string {
	pairs := make([]string, 0, len(triggeredData))
	for k, v := range triggeredData {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(pairs)

	return utils.HashString(strings.Join(pairs, "\x1f"))
}
