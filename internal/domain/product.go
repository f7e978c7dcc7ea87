package domain

import (
	"math"
	"time"
)

// Availability status constants, derived from stock.
const (
	AvailabilityInStock    = "in_stock"
	AvailabilityLowStock   = "low_stock"
	AvailabilityOutOfStock = "out_of_stock"
)

// lowStockThreshold is the stock level below which a product is flagged low.
const lowStockThreshold = 10

// DeriveAvailability computes the availability status from the stock level.
// Zero stock always maps to out_of_stock regardless of what the source says.
func DeriveAvailability(stock int) string {
	switch {
	case stock <= 0:
		return AvailabilityOutOfStock
	case stock < lowStockThreshold:
		return AvailabilityLowStock
	default:
		return AvailabilityInStock
	}
}

// Product represents a catalog item. ID is the stable external identifier
// assigned by the catalog source; the relational store adopts it as the
// primary key so upserts are naturally idempotent.
type Product struct {
	ID                   int64              `json:"id"`
	Title                string             `json:"title"`
	Description          string             `json:"description"`
	Price                float64            `json:"price"`
	DiscountPercentage   float64            `json:"discount_percentage"`
	Rating               float64            `json:"rating"`
	Stock                int                `json:"stock"`
	Brand                string             `json:"brand,omitempty"`
	SKU                  string             `json:"sku,omitempty"`
	AvailabilityStatus   string             `json:"availability_status"`
	Thumbnail            string             `json:"thumbnail,omitempty"`
	Weight               float64            `json:"weight,omitempty"`
	Barcode              string             `json:"barcode,omitempty"`
	QRCode               string             `json:"qr_code,omitempty"`
	WarrantyInformation  string             `json:"warranty_information,omitempty"`
	ShippingInformation  string             `json:"shipping_information,omitempty"`
	ReturnPolicy         string             `json:"return_policy,omitempty"`
	MinimumOrderQuantity int                `json:"minimum_order_quantity"`
	Categories           []Category         `json:"categories,omitempty"`
	Images               []ProductImage     `json:"images,omitempty"`
	Tags                 []string           `json:"tags,omitempty"`
	Reviews              []ProductReview    `json:"reviews,omitempty"`
	Dimensions           *ProductDimensions `json:"dimensions,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// FinalPrice returns the effective price after discount, rounded to 2 decimals.
func (p *Product) FinalPrice() float64 {
	return FinalPrice(p.Price, p.DiscountPercentage)
}

// FinalPrice computes price × (1 − discount/100) rounded to 2 decimals.
func FinalPrice(price, discountPercentage float64) float64 {
	return math.Round(price*(1-discountPercentage/100)*100) / 100
}

// ProductImage is an image owned by exactly one product.
type ProductImage struct {
	ProductID int64  `json:"product_id"`
	URL       string `json:"url"`
	SortOrder int    `json:"sort_order"`
}

// ProductReview is a review carried over from the catalog source. Reviews are
// facet data: replaced wholesale on every upsert, never edited in place.
type ProductReview struct {
	ProductID     int64     `json:"product_id"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment"`
	ReviewerName  string    `json:"reviewer_name"`
	ReviewerEmail string    `json:"reviewer_email"`
	ReviewedAt    time.Time `json:"reviewed_at"`
}

// ProductDimensions holds the optional physical dimensions of a product.
type ProductDimensions struct {
	ProductID int64   `json:"product_id"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Depth     float64 `json:"depth"`
}
