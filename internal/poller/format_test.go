package poller

import "testing"

func TestRender(t *testing.T) {
	data := map[string]string{
		"order_id":    "12345",
		"payment_id":  "PAY-9",
		"invoice_url": "",
	}

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"single", "Order {order_id} received", "Order 12345 received"},
		{"multiple", "{order_id}/{payment_id}", "12345/PAY-9"},
		{"unknown kept verbatim", "Hi {customer_name}", "Hi {customer_name}"},
		{"empty value substituted", "Invoice: {invoice_url}.", "Invoice: ."},
		{"no placeholders", "plain text", "plain text"},
		{"repeated", "{order_id} {order_id}", "12345 12345"},
		{"braces without key", "{} {not closed", "{} {not closed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Render(tc.in, data); got != tc.want {
				t.Fatalf("Render(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
