package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveAvailability(t *testing.T) {
	tests := []struct {
		stock int
		want  string
	}{
		{0, AvailabilityOutOfStock},
		{-3, AvailabilityOutOfStock},
		{1, AvailabilityLowStock},
		{9, AvailabilityLowStock},
		{10, AvailabilityInStock},
		{500, AvailabilityInStock},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DeriveAvailability(tt.stock), "stock=%d", tt.stock)
	}
}

func TestFinalPrice(t *testing.T) {
	tests := []struct {
		name     string
		price    float64
		discount float64
		want     float64
	}{
		{"no discount", 100, 0, 100},
		{"ten percent", 100, 10, 90},
		{"rounds half up", 9.99, 7.17, 9.27},
		{"full discount", 49.99, 100, 0},
		{"fractional cents", 19.99, 12.5, 17.49},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, FinalPrice(tt.price, tt.discount), 0.001)
		})
	}
}

func TestProjectSearchDocument(t *testing.T) {
	p := &Product{
		ID:                   42,
		Title:                "Wireless Headphones Pro",
		Price:                199.99,
		DiscountPercentage:   15,
		Rating:               4.8,
		Stock:                5,
		Brand:                "SoundCore",
		SKU:                  "WHP-42",
		AvailabilityStatus:   AvailabilityLowStock,
		Weight:               4,
		Barcode:              "8400326844874",
		MinimumOrderQuantity: 2,
		Categories: []Category{
			{Name: "Audio", Slug: "audio"},
			{Name: "Mobile Accessories", Slug: "mobile-accessories"},
		},
		Tags: []string{"wireless", "bluetooth"},
	}

	doc := ProjectSearchDocument(p)

	assert.Equal(t, int64(42), doc.ID)
	assert.InDelta(t, 169.99, doc.FinalPrice, 0.001)
	assert.Equal(t, []string{"Audio", "Mobile Accessories"}, doc.CategoryNames)
	assert.Equal(t, []string{"audio", "mobile-accessories"}, doc.CategorySlugs)
	assert.Equal(t, AvailabilityLowStock, doc.AvailabilityStatus)
	assert.InDelta(t, 4, doc.Weight, 0.001)
	assert.Equal(t, "8400326844874", doc.Barcode)
	assert.Equal(t, 2, doc.MinimumOrderQuantity)
}

func TestIsValidSort(t *testing.T) {
	assert.True(t, IsValidSort(SortRelevance))
	assert.True(t, IsValidSort(SortPriceDesc))
	assert.False(t, IsValidSort("alphabetical"))
	assert.False(t, IsValidSort(""))
}
