package transform

import (
	"fmt"

	"github.com/JonMunkholm/landingzone/internal/catalog"
	"github.com/JonMunkholm/landingzone/internal/core"
)

// ValidateCount compares a declared row count with the rows loaded.
//
//	summary_count  expected >= rows
//	header_count   expected == rows
//
// Any other condition is an InvalidCountCondition failure.
func ValidateCount(condition string, expected int64, rows int, fileName string) error {
	n := int64(rows)
	switch condition {
	case catalog.ConditionSummaryCount:
		if expected < n {
			return core.Fail(core.InvalidSummaryCount,
				fmt.Sprintf("summary count (%d) is below row count (%d) in %s", expected, n, fileName),
				map[string]any{"summary_count": expected, "row_count": n})
		}
	case catalog.ConditionHeaderCount:
		if expected != n {
			return core.Fail(core.InvalidHeaderCount,
				fmt.Sprintf("header count (%d) does not match row count (%d) in %s", expected, n, fileName),
				map[string]any{"header_count": expected, "row_count": n})
		}
	default:
		return core.Fail(core.InvalidCountCondition,
			fmt.Sprintf("invalid count condition %q for %s", condition, fileName),
			map[string]any{"condition": condition, "expected_count": expected, "row_count": n})
	}
	return nil
}
