package cart

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/angelmondragon/storefront-checkout/internal/catalog"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

func strPtr(s string) *string { return &s }

func productLine(id, productID string, qty int, price int64) Line {
	return Line{ID: id, ProductID: productID, Quantity: qty, UnitPrice: price, Kind: enums.ItemKindProduct, Selected: true}
}

func TestGroupOrdersByFirstSeenStore(t *testing.T) {
	t.Parallel()

	products := catalog.NewSnapshot(
		catalog.Product{ID: "p1", StoreID: "s1", StoreName: "Store One"},
		catalog.Product{ID: "p2", StoreID: "s2", StoreName: "Store Two"},
		catalog.Product{ID: "p3", StoreID: "s1", StoreName: "Store One"},
	)
	lines := []Line{
		productLine("l1", "p2", 1, 50000),
		productLine("l2", "p1", 2, 100000),
		productLine("l3", "p3", 1, 10000),
	}
	lines[2].Selected = false

	groups := Group(lines, products)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].StoreID != "s2" || groups[1].StoreID != "s1" {
		t.Fatalf("unexpected group order %s, %s", groups[0].StoreID, groups[1].StoreID)
	}
	if groups[1].SelectedSubtotal != 200000 {
		t.Fatalf("unselected lines must not count toward subtotal, got %d", groups[1].SelectedSubtotal)
	}
	if len(groups[1].Lines) != 2 || len(groups[1].SelectedLines()) != 1 {
		t.Fatalf("unexpected s1 membership %+v", groups[1].Lines)
	}
	if !groups[0].Resolved || groups[0].StoreName != "Store Two" {
		t.Fatalf("expected resolved store metadata, got %+v", groups[0])
	}
}

func TestGroupUnresolvedAndComboLines(t *testing.T) {
	t.Parallel()

	products := catalog.NewSnapshot(
		catalog.Product{ID: "p1", StoreID: "s1"},
		catalog.Product{ID: "combo-base-known", StoreID: "s1"},
	)
	lines := []Line{
		productLine("l1", "p-missing", 1, 100),
		{ID: "l2", ProductID: "combo-base", ComboID: strPtr("c1"), Quantity: 1, UnitPrice: 300, Kind: enums.ItemKindCombo, Selected: true},
		{ID: "l3", ProductID: "combo-base-known", ComboID: strPtr("c2"), Quantity: 1, UnitPrice: 400, Kind: enums.ItemKindCombo, Selected: true},
		productLine("l4", "p1", 1, 100),
	}

	groups := Group(lines, products)
	keys := make([]string, 0, len(groups))
	for _, g := range groups {
		keys = append(keys, g.StoreID)
	}
	want := []string{"unknown-p-missing", "unknown-combo-base", "s1"}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Fatalf("expected keys %v, got %v", want, keys)
	}
	if groups[0].Resolved || groups[1].Resolved {
		t.Fatal("synthetic groups must be unresolved")
	}
	if len(groups[2].Lines) != 2 {
		t.Fatalf("combo with cached store metadata should join its store, got %d lines", len(groups[2].Lines))
	}
}

func TestGroupNeverDropsOrDuplicatesLines(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 200; iter++ {
		var known []catalog.Product
		for p := 0; p < 6; p++ {
			if rng.Intn(3) > 0 {
				known = append(known, catalog.Product{ID: fmt.Sprintf("p%d", p), StoreID: fmt.Sprintf("s%d", rng.Intn(3))})
			}
		}
		products := catalog.NewSnapshot(known...)

		n := rng.Intn(12)
		lines := make([]Line, 0, n)
		for i := 0; i < n; i++ {
			l := productLine(fmt.Sprintf("l%d", i), fmt.Sprintf("p%d", rng.Intn(6)), 1+rng.Intn(3), int64(rng.Intn(1000)))
			if rng.Intn(4) == 0 {
				l.Kind = enums.ItemKindCombo
				l.ComboID = strPtr("c")
			}
			lines = append(lines, l)
		}

		seen := map[string]int{}
		for _, g := range Group(lines, products) {
			for _, l := range g.Lines {
				seen[l.ID]++
			}
		}
		if len(seen) != len(lines) {
			t.Fatalf("iteration %d: expected %d lines grouped, got %d", iter, len(lines), len(seen))
		}
		for id, count := range seen {
			if count != 1 {
				t.Fatalf("iteration %d: line %s placed %d times", iter, id, count)
			}
		}
	}
}

func TestLookupProductIDsSkipsCombos(t *testing.T) {
	t.Parallel()

	lines := []Line{
		productLine("l1", "p1", 1, 1),
		productLine("l2", "p1", 1, 1),
		{ID: "l3", ProductID: "p2", ComboID: strPtr("c"), Kind: enums.ItemKindCombo, Quantity: 1},
	}
	if got := LookupProductIDs(lines); fmt.Sprint(got) != "[p1]" {
		t.Fatalf("unexpected lookup ids %v", got)
	}
	if got := ProductIDs(lines); fmt.Sprint(got) != "[p1 p2]" {
		t.Fatalf("unexpected product ids %v", got)
	}
}

func TestLineValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		line    Line
		wantErr bool
	}{
		{name: "product only", line: productLine("l1", "p1", 1, 10)},
		{name: "variant", line: Line{ID: "l1", ProductID: "p1", VariantID: strPtr("v1"), Quantity: 1, Kind: enums.ItemKindProduct}},
		{name: "combo", line: Line{ID: "l1", ProductID: "p1", ComboID: strPtr("c1"), Quantity: 1, Kind: enums.ItemKindCombo}},
		{name: "combo without id", line: Line{ID: "l1", ProductID: "p1", Quantity: 1, Kind: enums.ItemKindCombo}, wantErr: true},
		{name: "combo with variant", line: Line{ID: "l1", ProductID: "p1", ComboID: strPtr("c1"), VariantID: strPtr("v1"), Quantity: 1, Kind: enums.ItemKindCombo}, wantErr: true},
		{name: "product with combo", line: Line{ID: "l1", ProductID: "p1", ComboID: strPtr("c1"), Quantity: 1, Kind: enums.ItemKindProduct}, wantErr: true},
		{name: "zero quantity", line: productLine("l1", "p1", 0, 10), wantErr: true},
		{name: "blank variant", line: Line{ID: "l1", ProductID: "p1", VariantID: strPtr(" "), Quantity: 1, Kind: enums.ItemKindProduct}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.line.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("wantErr=%v got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLineTotals(t *testing.T) {
	t.Parallel()

	original := int64(120)
	l := Line{UnitPrice: 100, OriginalUnitPrice: &original, Quantity: 3}
	if l.Total() != 300 || l.OriginalTotal() != 360 {
		t.Fatalf("unexpected totals %d/%d", l.Total(), l.OriginalTotal())
	}
	l.OriginalUnitPrice = nil
	if l.OriginalTotal() != 300 {
		t.Fatalf("original total should fall back to unit price, got %d", l.OriginalTotal())
	}
}
