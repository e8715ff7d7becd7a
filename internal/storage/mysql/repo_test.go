package mysql

import "testing"

func TestScanDecimal(t *testing.T) {
	d, err := scanDecimal("120.5000")
	if err != nil {
		t.Fatalf("valid decimal rejected: %v", err)
	}
	if got := d.StringFixed(2); got != "120.50" {
		t.Fatalf("expected 120.50, got %s", got)
	}

	if _, err := scanDecimal("not-a-number"); err == nil {
		t.Fatalf("corrupt decimal column must surface an error, not a zero price")
	}
	if _, err := scanDecimal(""); err == nil {
		t.Fatalf("empty decimal column must surface an error")
	}
}
