// Package schema describes the response shape an agent is asked to produce.
package schema

// Primitive type tags used by properties.
const (
	TypeObject  = "object"
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeArray   = "array"
)

// Schema is a JSON-schema-like response contract.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes a single expected response field.
type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

// Object creates an object schema with the given properties.
func Object(properties map[string]Property, required ...string) Schema {
	s := Schema{
		Type:       TypeObject,
		Properties: properties,
	}
	if len(required) > 0 {
		s.Required = required
	}
	return s
}

// String creates a string property with optional description.
func String(description string) Property {
	return Property{Type: TypeString, Description: description}
}

// StringEnum creates a string property with allowed values.
func StringEnum(description string, values ...string) Property {
	return Property{Type: TypeString, Description: description, Enum: values}
}

// Number creates a number property with optional description.
func Number(description string) Property {
	return Property{Type: TypeNumber, Description: description}
}

// Integer creates an integer property with optional description.
func Integer(description string) Property {
	return Property{Type: TypeInteger, Description: description}
}

// Boolean creates a boolean property with optional description.
func Boolean(description string) Property {
	return Property{Type: TypeBoolean, Description: description}
}

// Array creates an array property with the given item type.
func Array(description string, items Property) Property {
	return Property{Type: TypeArray, Description: description, Items: &items}
}

// Valid reports whether s has at least one property and every required
// field is declared.
func (s Schema) Valid() bool {
	if len(s.Properties) == 0 {
		return false
	}
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; !ok {
			return false
		}
	}
	return true
}

// Has reports whether the schema declares the named property.
func (s Schema) Has(name string) bool {
	_, ok := s.Properties[name]
	return ok
}

// With returns a copy of s with the extra properties merged in.
// s itself is never modified.
func (s Schema) With(properties map[string]Property, required ...string) Schema {
	props := make(map[string]Property, len(s.Properties)+len(properties))
	for k, v := range s.Properties {
		props[k] = v
	}
	for k, v := range properties {
		props[k] = v
	}
	req := make([]string, 0, len(s.Required)+len(required))
	req = append(req, s.Required...)
	for _, name := range required {
		if !contains(req, name) {
			req = append(req, name)
		}
	}
	out := Schema{Type: s.Type, Properties: props}
	if len(req) > 0 {
		out.Required = req
	}
	if out.Type == "" {
		out.Type = TypeObject
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
