package validator

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRecord struct {
	ExternalID int64   `validate:"required,gt=0"`
	Title      string  `validate:"required,min=1,max=255"`
	SKU        string  `validate:"required"`
	Price      float64 `validate:"gte=0"`
	Thumbnail  string  `validate:"omitempty,url"`
}

func validSample() sampleRecord {
	return sampleRecord{
		ExternalID: 1,
		Title:      "Essence Mascara Lash Princess",
		SKU:        "RCH45Q1A",
		Price:      9.99,
		Thumbnail:  "https://cdn.example.com/1/thumbnail.png",
	}
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, Validate(validSample()))
}

func TestValidate_MissingRequired(t *testing.T) {
	rec := validSample()
	rec.Title = ""
	rec.SKU = ""

	err := Validate(rec)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)

	fields := valErr.Fields()
	assert.Contains(t, fields, "Title")
	assert.Contains(t, fields, "SKU")
	assert.Equal(t, "is required", fields["Title"])
}

func TestValidate_NegativePrice(t *testing.T) {
	rec := validSample()
	rec.Price = -1

	err := Validate(rec)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Fields(), "Price")
}

func TestValidate_BadURL(t *testing.T) {
	rec := validSample()
	rec.Thumbnail = "not a url"

	err := Validate(rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Thumbnail")
}

func TestDecodeAndValidate(t *testing.T) {
	body := `{"ExternalID":5,"Title":"Calvin Klein CK One","SKU":"CK1","Price":49.99}`
	r := httptest.NewRequest("POST", "/", strings.NewReader(body))

	var rec sampleRecord
	assert.NoError(t, DecodeAndValidate(r, &rec))
	assert.Equal(t, int64(5), rec.ExternalID)
}

func TestDecodeAndValidate_MalformedJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader("{not json"))

	var rec sampleRecord
	err := DecodeAndValidate(r, &rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}
