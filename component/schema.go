package component

// Schema describes one constructor parameter in the JSON-Schema-like
// dialect consumed by the graph editor's form resolver:
//
//   - {type: "string"|"number"|"integer"|"boolean", default?, enum?}
//   - {type: "object", properties: {name -> schema}}
//   - {anyOf: [schema, ...]}
//   - {$ref: "#/$defs/Name", $defs: {Name -> schema}}
//
// The editor flattens nested structures to dotted form-field keys and
// reconstructs the nested object on submit.
type Schema struct {
	Type       string             `json:"type,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Default    any                `json:"default,omitempty"`
	Enum       []any              `json:"enum,omitempty"`
	AnyOf      []*Schema          `json:"anyOf,omitempty"`
	Ref        string             `json:"$ref,omitempty"`
	Defs       map[string]*Schema `json:"$defs,omitempty"`
}

// String returns a primitive string schema, optionally with a default.
func String(def ...string) *Schema {
	s := &Schema{Type: "string"}
	if len(def) > 0 {
		s.Default = def[0]
	}
	return s
}

// Integer returns a primitive integer schema, optionally with a default.
func Integer(def ...int) *Schema {
	s := &Schema{Type: "integer"}
	if len(def) > 0 {
		s.Default = def[0]
	}
	return s
}

// Number returns a primitive number schema, optionally with a default.
func Number(def ...float64) *Schema {
	s := &Schema{Type: "number"}
	if len(def) > 0 {
		s.Default = def[0]
	}
	return s
}

// Boolean returns a primitive boolean schema, optionally with a default.
func Boolean(def ...bool) *Schema {
	s := &Schema{Type: "boolean"}
	if len(def) > 0 {
		s.Default = def[0]
	}
	return s
}

// Object returns an object schema with the given properties.
func Object(props map[string]*Schema) *Schema {
	return &Schema{Type: "object", Properties: props}
}

// initDocument assembles the JSON-schema document the registry validates
// init arguments against: an object with one property per parameter,
// rejecting unknown parameters. $defs declared on individual parameter
// schemas are hoisted to the document root so "#/$defs/Name" references
// resolve.
func initDocument(init map[string]*Schema) map[string]any {
	props := make(map[string]any, len(init))
	defs := make(map[string]any)
	for name, s := range init {
		props[name] = s
		for defName, defSchema := range s.Defs {
			defs[defName] = defSchema
		}
	}
	doc := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(defs) > 0 {
		doc["$defs"] = defs
	}
	return doc
}
