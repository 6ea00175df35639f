package engine

import (
	"testing"

	"github.com/pricevault/tierkit/internal/domain"
)

func TestInScopeAll(t *testing.T) {
	scope := domain.Scope{Kind: domain.ScopeAll}
	line := productLine("l1", "p1", 1, "10")

	if !InScope(line, scope) {
		t.Error("expected any product line in scope under all")
	}
}

func TestInScopeProducts(t *testing.T) {
	scope := domain.Scope{Kind: domain.ScopeProducts, ProductIDs: []string{"p1", "p2"}}

	if !InScope(productLine("l1", "p1", 1, "10"), scope) {
		t.Error("expected listed product in scope")
	}
	if InScope(productLine("l2", "p3", 1, "10"), scope) {
		t.Error("expected unlisted product out of scope")
	}
}

func TestInScopeCollections(t *testing.T) {
	scope := domain.Scope{Kind: domain.ScopeCollections, CollectionIDs: []string{"c1"}}

	in := productLine("l1", "p1", 1, "10")
	in.Merchandise.Collections = []string{"c9", "c1"}
	if !InScope(in, scope) {
		t.Error("expected line sharing a collection in scope")
	}

	out := productLine("l2", "p2", 1, "10")
	out.Merchandise.Collections = []string{"c9"}
	if InScope(out, scope) {
		t.Error("expected line with no shared collection out of scope")
	}

	none := productLine("l3", "p3", 1, "10")
	if InScope(none, scope) {
		t.Error("expected line with no collections out of scope")
	}
}

func TestInScopeNone(t *testing.T) {
	if InScope(productLine("l1", "p1", 1, "10"), domain.Scope{Kind: domain.ScopeNone}) {
		t.Error("expected nothing in scope under none")
	}
}

func TestInScopeExclusionWinsEverywhere(t *testing.T) {
	line := productLine("l1", "p1", 1, "10")
	line.Merchandise.Collections = []string{"c1"}

	scopes := []domain.Scope{
		{Kind: domain.ScopeAll, Exclude: []string{"p1"}},
		{Kind: domain.ScopeProducts, ProductIDs: []string{"p1"}, Exclude: []string{"p1"}},
		{Kind: domain.ScopeCollections, CollectionIDs: []string{"c1"}, Exclude: []string{"p1"}},
	}
	for _, scope := range scopes {
		if InScope(line, scope) {
			t.Errorf("kind %s: expected excluded product out of scope", scope.Kind)
		}
	}
}

func TestInScopeNonProductMerchandise(t *testing.T) {
	line := domain.CartLine{
		ID:          "l1",
		Quantity:    1,
		Cost:        dec("10"),
		Merchandise: domain.Merchandise{Kind: domain.MerchandiseOther},
	}

	if InScope(line, domain.Scope{Kind: domain.ScopeAll}) {
		t.Error("expected non-product merchandise out of scope even under all")
	}
}
