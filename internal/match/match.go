// Package match decides which notification templates apply to an order.
package match

import (
	"sort"

	"github.com/MarcineQ18/apilo-notifier1/internal/db"
)

// Match filters catalog down to the active templates applicable to an order
// with the given SKUs and returns them in dispatch order: ascending priority,
// then ascending UpdatedAt so older templates of equal priority go first.
//
// A template with no SKU assignments matches every order; otherwise it
// matches when its SKU set intersects the order's. Pure function: no I/O,
// the catalog slice is not mutated.
func Match(catalog []db.Template, orderSKUs []string) []db.Template {
	orderSet := make(map[string]struct{}, len(orderSKUs))
	for _, sku := range orderSKUs {
		orderSet[sku] = struct{}{}
	}

	var matched []db.Template
	for _, tpl := range catalog {
		if !tpl.IsActive {
			continue
		}
		if len(tpl.SKUs) == 0 || intersects(tpl.SKUs, orderSet) {
			matched = append(matched, tpl)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority < matched[j].Priority
		}
		return matched[i].UpdatedAt.Before(matched[j].UpdatedAt)
	})

	return matched
}

func intersects(skus []string, orderSet map[string]struct{}) bool {
	for _, sku := range skus {
		if _, ok := orderSet[sku]; ok {
			return true
		}
	}
	return false
}
