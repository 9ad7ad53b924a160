package apilo

import (
	"strconv"
	"strings"
)

// OrderData is a raw JSON object from the order API. The API has shipped the
// same concept under several field names over time, so extraction walks an
// ordered candidate list and takes the first present, non-null value.
type OrderData map[string]any

// Candidate field names, tried in priority order.
var (
	orderIDKeys   = []string{"id", "orderId"}
	batchKeys     = []string{"orders", "data", "results"}
	documentsKeys = []string{"documents", "data", "results"}
	itemListKeys  = []string{"orderItems", "orderProducts", "products", "items", "orderProduct"}
	skuKeys       = []string{"sku", "productSku", "code", "symbol"}
	phoneKeys     = []string{"phone", "phoneNumber"}
)

// ID returns the order identifier as a string, or empty when absent.
func (o OrderData) ID() string {
	return firstString(o, orderIDKeys)
}

// CustomerEmail returns the customer email from the order address block.
func (o OrderData) CustomerEmail() string {
	addr, _ := o["addressCustomer"].(map[string]any)
	return firstString(addr, []string{"email"})
}

// CustomerPhone returns the customer phone from the order address block.
func (o OrderData) CustomerPhone() string {
	addr, _ := o["addressCustomer"].(map[string]any)
	return firstString(addr, phoneKeys)
}

// PaymentID returns the external payment identifier of the first payment,
// falling back to its internal id, or "none" when the order has no payments.
func (o OrderData) PaymentID() string {
	payments, _ := o["orderPayments"].([]any)
	if len(payments) == 0 {
		return "none"
	}
	p0, _ := payments[0].(map[string]any)
	if ext := firstString(p0, []string{"idExternal"}); ext != "" {
		return ext
	}
	if id := firstString(p0, []string{"id"}); id != "" {
		return id
	}
	return "none"
}

// SKUs returns the order's product identifiers, deduplicated with the order
// of first appearance preserved.
func (o OrderData) SKUs() []string {
	var items []any
	for _, key := range itemListKeys {
		if arr, ok := o[key].([]any); ok {
			items = append(items, arr...)
		}
	}

	var out []string
	seen := make(map[string]struct{})
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		sku := strings.TrimSpace(firstString(m, skuKeys))
		if sku == "" {
			continue
		}
		if _, dup := seen[sku]; dup {
			continue
		}
		seen[sku] = struct{}{}
		out = append(out, sku)
	}
	return out
}

// extractBatch pulls the order list out of a paginated response object.
func extractBatch(page map[string]any) []OrderData {
	for _, key := range batchKeys {
		arr, ok := page[key].([]any)
		if !ok {
			continue
		}
		out := make([]OrderData, 0, len(arr))
		for _, v := range arr {
			if m, ok := v.(map[string]any); ok {
				out = append(out, OrderData(m))
			}
		}
		return out
	}
	return nil
}

// firstString returns the first present, non-null candidate rendered as a
// string. Numeric JSON values are accepted since ids arrive both ways.
func firstString(m map[string]any, keys []string) string {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if t != "" {
				return t
			}
		case float64:
			return strconv.FormatInt(int64(t), 10)
		}
	}
	return ""
}

// stringField reads a single string-or-number field.
func stringField(m map[string]any, key string) string {
	return firstString(m, []string{key})
}

// numberField reads an integer field, reporting presence.
func numberField(m map[string]any, key string) (int, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
