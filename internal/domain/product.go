package domain

import (
	"errors"
	"time"
)

// Variant kind constants. Combination rows track stock per concrete
// (size, color) pair; axis rows track stock per size or color independently.
const (
	VariantKindCombination = "combination"
	VariantKindSizeAxis    = "size_axis"
	VariantKindColorAxis   = "color_axis"
)

// Bucket kind constants.
const (
	BucketBase        = "base"
	BucketCombination = "combination"
	BucketAxis        = "axis"
)

// ErrNoMatchingVariant is returned when a line item requests a size/color the
// product does not track. Resolution fails closed: the base stock is never
// used to serve a variant-specific request.
var ErrNoMatchingVariant = errors.New("no matching variant")

// Product is a catalog entry referenced by order line items.
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Price         int64     `json:"price"`
	SalePrice     *int64    `json:"sale_price,omitempty"`
	Image         string    `json:"image,omitempty"`
	StockQuantity int       `json:"stock_quantity"`
	Variants      []Variant `json:"variants,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UnitPrice returns the price snapshot value for new order items: the sale
// price when one is set, the regular price otherwise.
func (p *Product) UnitPrice() int64 {
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.Price
}

// Variant is one stock row of a product. Size and Color are populated
// according to Kind: combination rows may carry both, axis rows carry one.
type Variant struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Kind      string `json:"kind"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Stock     int    `json:"stock"`
}

// Bucket identifies the stock rows a line item draws from. A base bucket has
// no variants; a combination bucket has exactly one; an axis bucket has one
// row per constrained axis, and its availability is the minimum across them.
type Bucket struct {
	Kind      string
	Variants  []Variant
	Available int
}

// ResolveBucket maps a line item's (size, color) request onto the product's
// stock buckets. Requests without size or color always draw from base stock.
// Variant requests resolve against combination rows first (line-item fields
// left empty act as wildcards), then against axis rows (both constraints must
// hold, availability is the minimum). A variant request with no matching row
// fails closed with ErrNoMatchingVariant.
func (p *Product) ResolveBucket(size, color string) (Bucket, error) {
	if size == "" && color == "" {
		return Bucket{Kind: BucketBase, Available: p.StockQuantity}, nil
	}

	var combos, axes []Variant
	for _, v := range p.Variants {
		switch v.Kind {
		case VariantKindCombination:
			combos = append(combos, v)
		case VariantKindSizeAxis, VariantKindColorAxis:
			axes = append(axes, v)
		}
	}

	if len(combos) > 0 {
		for _, v := range combos {
			if (size == "" || v.Size == size) && (color == "" || v.Color == color) {
				return Bucket{Kind: BucketCombination, Variants: []Variant{v}, Available: v.Stock}, nil
			}
		}
		return Bucket{}, ErrNoMatchingVariant
	}

	if len(axes) > 0 {
		var matched []Variant
		available := -1
		if size != "" {
			v, ok := findAxis(axes, VariantKindSizeAxis, size)
			if !ok {
				return Bucket{}, ErrNoMatchingVariant
			}
			matched = append(matched, v)
			available = v.Stock
		}
		if color != "" {
			v, ok := findAxis(axes, VariantKindColorAxis, color)
			if !ok {
				return Bucket{}, ErrNoMatchingVariant
			}
			matched = append(matched, v)
			if available < 0 || v.Stock < available {
				available = v.Stock
			}
		}
		return Bucket{Kind: BucketAxis, Variants: matched, Available: available}, nil
	}

	// Variant requested but the product tracks no variants at all.
	return Bucket{}, ErrNoMatchingVariant
}

func findAxis(axes []Variant, kind, value string) (Variant, bool) {
	for _, v := range axes {
		if v.Kind != kind {
			continue
		}
		if (kind == VariantKindSizeAxis && v.Size == value) ||
			(kind == VariantKindColorAxis && v.Color == value) {
			return v, true
		}
	}
	return Variant{}, false
}

// StockCheckItem is one line of a read-only availability check.
type StockCheckItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

// StockCheckResult reports the availability of a single requested item.
type StockCheckResult struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Requested int    `json:"requested_quantity"`
	Available int    `json:"available_stock"`
	InStock   bool   `json:"in_stock"`
}
