package clipboard

import (
	"testing"
)

func TestCopyAndPaste(t *testing.T) {
	testText := "test.dataset.table"

	err := Copy(testText)
	if err != nil {
		t.Skipf("Clipboard not available in test environment: %v", err)
		return
	}

	result, err := Paste()
	if err != nil {
		t.Fatalf("Failed to paste from clipboard: %v", err)
	}

	if result != testText {
		t.Errorf("Expected '%s', got '%s'", testText, result)
	}
}

func TestRefs(t *testing.T) {
	if got, want := TableRef("p", "sales", "orders"), "p.sales.orders"; got != want {
		t.Errorf("TableRef = %q, want %q", got, want)
	}
	if got, want := DatasetRef("p", "sales"), "p.sales"; got != want {
		t.Errorf("DatasetRef = %q, want %q", got, want)
	}
	if got, want := LegacyTableRef("p", "sales", "orders"), "[p:sales.orders]"; got != want {
		t.Errorf("LegacyTableRef = %q, want %q", got, want)
	}
}

func TestCopyTableRef(t *testing.T) {
	ref, err := CopyTableRef(" p", "sales ", "orders")
	if err != nil {
		t.Skipf("Clipboard not available in test environment: %v", err)
	}
	if ref != "p.sales.orders" {
		t.Errorf("CopyTableRef = %q, want p.sales.orders", ref)
	}
}
