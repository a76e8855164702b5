package integration

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/erp/commercesync/internal/domain/integration"
)

// Webhook payloads are checked against these schemas before decoding.
// They only pin what reconciliation relies on; unknown fields pass.
const (
	orderSchemaURL   = "https://commercesync.local/schemas/order.json"
	productSchemaURL = "https://commercesync.local/schemas/product.json"

	amountSchema = `{"type": ["string", "number", "null"]}`

	orderSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "anyOf": [
    {"required": ["number"], "properties": {"number": {"type": "string", "minLength": 1}}},
    {"required": ["id"], "properties": {"id": {"type": "integer", "exclusiveMinimum": 0}}}
  ],
  "properties": {
    "id": {"type": "integer"},
    "number": {"type": ["string", "null"]},
    "status": {"type": "string"},
    "currency": {"type": ["string", "null"]},
    "total": ` + amountSchema + `,
    "billing": {"type": ["object", "null"]},
    "shipping": {"type": ["object", "null"]},
    "line_items": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "integer"},
          "product_id": {"type": "integer"},
          "quantity": {"type": "integer"},
          "price": ` + amountSchema + `,
          "total": ` + amountSchema + `
        }
      }
    }
  }
}`

	productSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "anyOf": [
    {"required": ["sku"], "properties": {"sku": {"type": "string", "pattern": "\\S"}}},
    {"required": ["id"], "properties": {"id": {"type": "integer", "exclusiveMinimum": 0}}}
  ],
  "properties": {
    "id": {"type": "integer"},
    "name": {"type": ["string", "null"]},
    "sku": {"type": ["string", "null"]},
    "price": ` + amountSchema + `,
    "status": {"type": ["string", "null"]},
    "stock_quantity": {"type": ["integer", "null"]},
    "images": {"type": ["array", "null"], "items": {"type": "object"}},
    "tags": {"type": ["array", "null"], "items": {"type": "object"}}
  }
}`
)

// PayloadValidator validates webhook payloads against the compiled schemas
type PayloadValidator struct {
	order   *jsonschema.Schema
	product *jsonschema.Schema
}

// NewPayloadValidator compiles the order and product schemas
func NewPayloadValidator() (*PayloadValidator, error) {
	c := jsonschema.NewCompiler()
	for url, src := range map[string]string{orderSchemaURL: orderSchema, productSchemaURL: productSchema} {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", url, err)
		}
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", url, err)
		}
	}

	order, err := c.Compile(orderSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile order schema: %w", err)
	}
	product, err := c.Compile(productSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile product schema: %w", err)
	}
	return &PayloadValidator{order: order, product: product}, nil
}

// ValidateOrder checks an order payload
func (v *PayloadValidator) ValidateOrder(payload []byte) error {
	return validatePayload(v.order, payload)
}

// ValidateProduct checks a product payload
func (v *PayloadValidator) ValidateProduct(payload []byte) error {
	return validatePayload(v.product, payload)
}

func validatePayload(schema *jsonschema.Schema, payload []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", integration.ErrInvalidPayload, err)
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", integration.ErrInvalidPayload, err)
	}
	return nil
}
