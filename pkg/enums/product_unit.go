package enums

import "fmt"

// ProductUnit is the unit products are sold in.
type ProductUnit string

const (
	ProductUnitPiece  ProductUnit = "piece"
	ProductUnitBox    ProductUnit = "box"
	ProductUnitCrate  ProductUnit = "crate"
	ProductUnitLitre  ProductUnit = "litre"
	ProductUnitKg     ProductUnit = "kg"
	ProductUnitPacket ProductUnit = "packet"
)

var validProductUnits = []ProductUnit{
	ProductUnitPiece,
	ProductUnitBox,
	ProductUnitCrate,
	ProductUnitLitre,
	ProductUnitKg,
	ProductUnitPacket,
}

// String implements fmt.Stringer.
func (p ProductUnit) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductUnit.
func (p ProductUnit) IsValid() bool {
	for _, candidate := range validProductUnits {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProductUnit converts raw input into a ProductUnit.
func ParseProductUnit(value string) (ProductUnit, error) {
	for _, candidate := range validProductUnits {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product unit %q", value)
}
