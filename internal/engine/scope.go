package engine

import (
	"github.com/pricevault/tierkit/internal/domain"
)

// InScope reports whether a cart line's product is eligible under the scope.
// Pure predicate, no side effects. The exclusion list is checked for every
// kind: an excluded product is never in scope no matter how it matched.
func InScope(line domain.CartLine, scope domain.Scope) bool {
	m := line.Merchandise
	if m.Kind != domain.MerchandiseProductVariant {
		return false
	}
	if contains(scope.Exclude, m.ProductID) {
		return false
	}

	switch scope.Kind {
	case domain.ScopeAll:
		return true
	case domain.ScopeProducts:
		return contains(scope.ProductIDs, m.ProductID)
	case domain.ScopeCollections:
		return intersects(scope.CollectionIDs, m.Collections)
	default:
		return false
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, v := range a {
		if contains(b, v) {
			return true
		}
	}
	return false
}
