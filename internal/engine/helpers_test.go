package engine

import (
	"github.com/shopspring/decimal"

	"github.com/pricevault/tierkit/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func productLine(id, productID string, quantity int, cost string) domain.CartLine {
	return domain.CartLine{
		ID:       id,
		Quantity: quantity,
		Cost:     dec(cost),
		Merchandise: domain.Merchandise{
			Kind:      domain.MerchandiseProductVariant,
			VariantID: "variant-" + id,
			ProductID: productID,
		},
	}
}

func pctTier(minQuantity int, value string) domain.Tier {
	return domain.Tier{
		MinQuantity: minQuantity,
		PriceRule:   domain.PriceRule{Type: domain.PricePercentage, Value: dec(value)},
	}
}

func amountTier(minQuantity int, value string) domain.Tier {
	return domain.Tier{
		MinQuantity: minQuantity,
		PriceRule:   domain.PriceRule{Type: domain.PriceAmountOff, Value: dec(value)},
	}
}
