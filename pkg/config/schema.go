package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// schema validates the static-file-serving part of the config. The ssi,
// charset and listen fields are this server's own extensions and are
// stripped before validation.
const schema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"public": {"type": "string"},
		"cleanUrls": {"type": ["boolean", "array"]},
		"trailingSlash": {"type": "boolean"},
		"renderSingle": {"type": "boolean"},
		"symlinks": {"type": "boolean"},
		"etag": {"type": "boolean"},
		"directoryListing": {"type": ["boolean", "array"]},
		"unlisted": {
			"type": "array",
			"items": {"type": "string"}
		},
		"rewrites": {
			"type": "array",
			"maxItems": 50,
			"items": {
				"type": "object",
				"additionalProperties": false,
				"required": ["source", "destination"],
				"properties": {
					"source": {
						"type": "string",
						"maxLength": 100
					},
					"destination": {
						"type": "string",
						"maxLength": 1000
					}
				}
			}
		},
		"redirects": {
			"type": "array",
			"maxItems": 50,
			"items": {
				"type": "object",
				"additionalProperties": false,
				"required": ["source", "destination"],
				"properties": {
					"source": {
						"type": "string",
						"maxLength": 100
					},
					"destination": {
						"type": "string",
						"maxLength": 1000
					},
					"type": {
						"type": "number",
						"minimum": 301,
						"maximum": 303
					}
				}
			}
		},
		"headers": {
			"type": "array",
			"maxItems": 50,
			"items": {
				"type": "object",
				"additionalProperties": false,
				"required": ["source", "headers"],
				"properties": {
					"source": {
						"type": "string",
						"maxLength": 100
					},
					"headers": {
						"type": "array",
						"maxItems": 50,
						"minItems": 1,
						"items": {
							"type": "object",
							"additionalProperties": false,
							"required": ["key", "value"],
							"properties": {
								"key": {
									"type": "string",
									"minLength": 1,
									"maxLength": 128
								},
								"value": {
									"type": "string",
									"minLength": 1,
									"maxLength": 2048
								}
							}
						}
					}
				}
			}
		}
	}
}`

// unvalidated are config fields outside the schema's scope.
var unvalidated = []string{"ssi", "charset", "listen"}

// Validate checks raw against the config schema. The returned error names
// the failing field and constraint.
func Validate(raw map[string]interface{}) error {
	checked := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		checked[k] = v
	}
	for _, k := range unvalidated {
		delete(checked, k)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewGoLoader(checked),
	)
	if err != nil {
		return errors.Wrap(err, "validating config")
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, e.Field()+": "+e.Description())
	}
	return errors.Errorf("config does not match schema: %s", strings.Join(violations, "; "))
}
