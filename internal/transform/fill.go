package transform

import (
	"fmt"

	"github.com/JonMunkholm/landingzone/internal/catalog"
	"github.com/JonMunkholm/landingzone/internal/tabular"
)

// ApplyFills fills null cells in rule order. A missing column, an unknown
// method, or a constant rule without a value is a configuration error.
func ApplyFills(t *tabular.Table, rules []catalog.FillRule) error {
	for _, r := range rules {
		col := t.Index(r.Column)
		if col < 0 {
			return fmt.Errorf("fill rule: column %q not found", r.Column)
		}
		switch r.Method {
		case catalog.FillForward:
			for i := 1; i < len(t.Rows); i++ {
				if !t.Rows[i][col].Valid {
					t.Rows[i][col] = t.Rows[i-1][col]
				}
			}
		case catalog.FillBackward:
			for i := len(t.Rows) - 2; i >= 0; i-- {
				if !t.Rows[i][col].Valid {
					t.Rows[i][col] = t.Rows[i+1][col]
				}
			}
		case catalog.FillConstant:
			if r.Value == nil {
				return fmt.Errorf("fill rule: constant fill of %q has no value", r.Column)
			}
			v := tabular.Value(*r.Value)
			for i := range t.Rows {
				if !t.Rows[i][col].Valid {
					t.Rows[i][col] = v
				}
			}
		default:
			return fmt.Errorf("fill rule: unknown method %q", r.Method)
		}
	}
	return nil
}
