package elasticsearch

// DefaultIndexName is the index used when no name is configured.
const DefaultIndexName = "catalog_products"

// buildIndexMapping returns the index settings and mapping. Text fields carry
// keyword sub-fields so the same field serves both full-text queries and
// exact-match aggregations.
func buildIndexMapping() string {
	return `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "analyzer": {
        "product_text": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase", "english_stop", "english_stemmer"]
        }
      },
      "filter": {
        "english_stop": {
          "type": "stop",
          "stopwords": "_english_"
        },
        "english_stemmer": {
          "type": "stemmer",
          "language": "english"
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "id": {"type": "long"},
      "title": {
        "type": "text",
        "analyzer": "product_text",
        "fields": {"keyword": {"type": "keyword"}}
      },
      "description": {
        "type": "text",
        "analyzer": "product_text"
      },
      "brand": {
        "type": "text",
        "analyzer": "product_text",
        "fields": {"keyword": {"type": "keyword"}}
      },
      "sku": {"type": "keyword"},
      "category_names": {
        "type": "text",
        "analyzer": "product_text",
        "fields": {"keyword": {"type": "keyword"}}
      },
      "category_slugs": {"type": "keyword"},
      "tags": {"type": "keyword"},
      "price": {"type": "double"},
      "discount_percentage": {"type": "double"},
      "final_price": {"type": "double"},
      "rating": {"type": "double"},
      "stock": {"type": "integer"},
      "availability_status": {"type": "keyword"},
      "thumbnail": {"type": "keyword", "index": false},
      "weight": {"type": "double"},
      "barcode": {"type": "keyword"},
      "minimum_order_quantity": {"type": "integer"},
      "created_at": {"type": "date"},
      "updated_at": {"type": "date"}
    }
  }
}`
}
