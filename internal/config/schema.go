package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// FallbackSchema renders the JSON Schema for the fallback-credentials file,
// backing the --print-config-schema flag.
func FallbackSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true, // inline defs
		ExpandedStruct: true, // put struct at root
	}
	s := r.Reflect(&FallbackFile{})
	s.Title = "Casedock fallback credentials"
	s.Description = "Ambient credentials used when a tool call supplies neither a sessionId nor inline credentials."
	return json.MarshalIndent(s, "", "  ")
}
