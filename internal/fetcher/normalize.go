package fetcher

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/utafrali/CatalogSyncGo/internal/domain"
	"github.com/utafrali/CatalogSyncGo/pkg/slug"
	"github.com/utafrali/CatalogSyncGo/pkg/validator"
)

// productRecord carries the validated identity fields of a normalized record.
type productRecord struct {
	ID    int64   `validate:"required,gt=0"`
	Title string  `validate:"required,min=1,max=255"`
	Price float64 `validate:"gte=0"`
	Stock int     `validate:"gte=0"`
}

// pick returns the first raw value present under any of the given keys. The
// catalog source is inconsistent about snake_case versus camelCase across
// endpoints, so every field lookup tolerates both spellings.
func pick(m map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && string(v) != "null" {
			return v, true
		}
	}
	return nil, false
}

func pickString(m map[string]json.RawMessage, keys ...string) string {
	raw, ok := pick(m, keys...)
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func pickFloat(m map[string]json.RawMessage, keys ...string) float64 {
	raw, ok := pick(m, keys...)
	if !ok {
		return 0
	}
	var f float64
	if json.Unmarshal(raw, &f) != nil {
		return 0
	}
	return f
}

func pickInt(m map[string]json.RawMessage, keys ...string) int {
	raw, ok := pick(m, keys...)
	if !ok {
		return 0
	}
	var i int
	if json.Unmarshal(raw, &i) == nil {
		return i
	}
	// Some sources serialize integral fields as floats.
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return int(f)
	}
	return 0
}

func pickStrings(m map[string]json.RawMessage, keys ...string) []string {
	raw, ok := pick(m, keys...)
	if !ok {
		return nil
	}
	var ss []string
	if json.Unmarshal(raw, &ss) != nil {
		return nil
	}
	return ss
}

// normalizeRecord converts one raw source object into a domain Product,
// tolerating snake_case and camelCase field spellings. It validates the
// identity fields and derives availability from stock, ignoring whatever
// status string the source sent.
func normalizeRecord(raw json.RawMessage) (domain.Product, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return domain.Product{}, fmt.Errorf("decode record: %w", err)
	}

	rec := productRecord{
		ID:    int64(pickInt(m, "id")),
		Title: pickString(m, "title"),
		Price: pickFloat(m, "price"),
		Stock: pickInt(m, "stock"),
	}
	if err := validator.Validate(rec); err != nil {
		return domain.Product{}, fmt.Errorf("validate record: %w", err)
	}

	p := domain.Product{
		ID:                   rec.ID,
		Title:                rec.Title,
		Description:          pickString(m, "description"),
		Price:                rec.Price,
		DiscountPercentage:   pickFloat(m, "discountPercentage", "discount_percentage"),
		Rating:               pickFloat(m, "rating"),
		Stock:                rec.Stock,
		Brand:                pickString(m, "brand"),
		SKU:                  pickString(m, "sku"),
		Thumbnail:            pickString(m, "thumbnail"),
		Weight:               pickFloat(m, "weight"),
		Barcode:              pickString(m, "barcode"),
		QRCode:               pickString(m, "qrCode", "qr_code"),
		WarrantyInformation:  pickString(m, "warrantyInformation", "warranty_information"),
		ShippingInformation:  pickString(m, "shippingInformation", "shipping_information"),
		ReturnPolicy:         pickString(m, "returnPolicy", "return_policy"),
		MinimumOrderQuantity: pickInt(m, "minimumOrderQuantity", "minimum_order_quantity"),
		Tags:                 pickStrings(m, "tags"),
	}
	if p.MinimumOrderQuantity < 1 {
		p.MinimumOrderQuantity = 1
	}
	p.AvailabilityStatus = domain.DeriveAvailability(p.Stock)

	if name := pickString(m, "category"); name != "" {
		p.Categories = []domain.Category{{Name: name, Slug: slug.Generate(name)}}
	}

	for i, u := range pickStrings(m, "images") {
		p.Images = append(p.Images, domain.ProductImage{ProductID: p.ID, URL: u, SortOrder: i})
	}

	if raw, ok := pick(m, "reviews"); ok {
		p.Reviews = normalizeReviews(p.ID, raw)
	}

	if raw, ok := pick(m, "dimensions"); ok {
		var dm map[string]json.RawMessage
		if json.Unmarshal(raw, &dm) == nil {
			p.Dimensions = &domain.ProductDimensions{
				ProductID: p.ID,
				Width:     pickFloat(dm, "width"),
				Height:    pickFloat(dm, "height"),
				Depth:     pickFloat(dm, "depth"),
			}
		}
	}

	if raw, ok := pick(m, "meta"); ok {
		var meta map[string]json.RawMessage
		if json.Unmarshal(raw, &meta) == nil {
			p.CreatedAt = pickTime(meta, "createdAt", "created_at")
			p.UpdatedAt = pickTime(meta, "updatedAt", "updated_at")
			// Some source payloads nest the codes under meta.
			if p.Barcode == "" {
				p.Barcode = pickString(meta, "barcode")
			}
			if p.QRCode == "" {
				p.QRCode = pickString(meta, "qrCode", "qr_code")
			}
		}
	}

	return p, nil
}

func normalizeReviews(productID int64, raw json.RawMessage) []domain.ProductReview {
	var items []map[string]json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return nil
	}

	reviews := make([]domain.ProductReview, 0, len(items))
	for _, item := range items {
		reviews = append(reviews, domain.ProductReview{
			ProductID:     productID,
			Rating:        pickInt(item, "rating"),
			Comment:       pickString(item, "comment"),
			ReviewerName:  pickString(item, "reviewerName", "reviewer_name"),
			ReviewerEmail: pickString(item, "reviewerEmail", "reviewer_email"),
			ReviewedAt:    pickTime(item, "date", "reviewed_at"),
		})
	}
	return reviews
}

func pickTime(m map[string]json.RawMessage, keys ...string) time.Time {
	s := pickString(m, keys...)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
