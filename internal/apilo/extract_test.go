package apilo

import (
	"reflect"
	"testing"
)

func TestOrderDataID(t *testing.T) {
	cases := []struct {
		name string
		data OrderData
		want string
	}{
		{"string id", OrderData{"id": "abc"}, "abc"},
		{"numeric id", OrderData{"id": float64(42)}, "42"},
		{"fallback orderId", OrderData{"orderId": "o-9"}, "o-9"},
		{"id wins over orderId", OrderData{"id": "a", "orderId": "b"}, "a"},
		{"null id falls through", OrderData{"id": nil, "orderId": "b"}, "b"},
		{"absent", OrderData{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.data.ID(); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCustomerContactExtraction(t *testing.T) {
	data := OrderData{
		"addressCustomer": map[string]any{
			"email":       "jan@example.com",
			"phoneNumber": "600111222",
		},
	}
	if got := data.CustomerEmail(); got != "jan@example.com" {
		t.Fatalf("email: got %q", got)
	}
	if got := data.CustomerPhone(); got != "600111222" {
		t.Fatalf("phone: got %q", got)
	}

	// phone wins over phoneNumber when both present
	data["addressCustomer"].(map[string]any)["phone"] = "500000000"
	if got := data.CustomerPhone(); got != "500000000" {
		t.Fatalf("phone priority: got %q", got)
	}
}

func TestPaymentID(t *testing.T) {
	if got := (OrderData{}).PaymentID(); got != "none" {
		t.Fatalf("no payments: got %q", got)
	}

	data := OrderData{"orderPayments": []any{
		map[string]any{"id": float64(7), "idExternal": "PAY-1"},
	}}
	if got := data.PaymentID(); got != "PAY-1" {
		t.Fatalf("external id: got %q", got)
	}

	data = OrderData{"orderPayments": []any{
		map[string]any{"id": float64(7)},
	}}
	if got := data.PaymentID(); got != "7" {
		t.Fatalf("internal id fallback: got %q", got)
	}
}

func TestSKUsDeduplicatedInFirstSeenOrder(t *testing.T) {
	data := OrderData{
		"orderItems": []any{
			map[string]any{"sku": "B"},
			map[string]any{"sku": "A"},
			map[string]any{"sku": "B"},
		},
		"orderProducts": []any{
			map[string]any{"productSku": "C"},
			map[string]any{"code": "A"},
		},
	}
	got := data.SKUs()
	want := []string{"B", "A", "C"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSKUsSkipBlankAndMalformed(t *testing.T) {
	data := OrderData{
		"items": []any{
			map[string]any{"sku": "  "},
			"not-an-object",
			map[string]any{"name": "no sku field"},
			map[string]any{"symbol": " X1 "},
		},
	}
	got := data.SKUs()
	want := []string{"X1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExtractBatchCandidateKeys(t *testing.T) {
	page := map[string]any{"results": []any{map[string]any{"id": "x"}}}
	batch := extractBatch(page)
	if len(batch) != 1 || batch[0].ID() != "x" {
		t.Fatalf("unexpected batch %v", batch)
	}

	if batch := extractBatch(map[string]any{}); batch != nil {
		t.Fatalf("expected nil batch, got %v", batch)
	}
}

func TestNumberField(t *testing.T) {
	m := map[string]any{"a": float64(5), "b": "7", "c": "x", "d": nil}

	if n, ok := numberField(m, "a"); !ok || n != 5 {
		t.Fatalf("float field: %d %v", n, ok)
	}
	if n, ok := numberField(m, "b"); !ok || n != 7 {
		t.Fatalf("string field: %d %v", n, ok)
	}
	if _, ok := numberField(m, "c"); ok {
		t.Fatal("non-numeric string should not parse")
	}
	if _, ok := numberField(m, "d"); ok {
		t.Fatal("null should report absent")
	}
	if _, ok := numberField(m, "missing"); ok {
		t.Fatal("missing key should report absent")
	}
}
