package plugins

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Required manifest keys. A manifest missing any of them is flagged invalid but
// still listed when non-runnable plugins are requested.
const (
	FieldName           = "name"
	FieldVersion        = "version"
	FieldDescription    = "description"
	FieldAuthor         = "author"
	FieldNetworkPolicy  = "network_policy"
	FieldResponsibleUse = "responsible_use"
)

// RequiredFields lists the keys every manifest must declare, in report order
var RequiredFields = []string{
	FieldName,
	FieldVersion,
	FieldDescription,
	FieldAuthor,
	FieldNetworkPolicy,
	FieldResponsibleUse,
}

// Manifest is the parsed manifest.json of a plugin. Unknown keys are kept
// verbatim so downstream consumers can read them.
type Manifest map[string]any

// Has reports whether the manifest declares key, whatever its value
func (m Manifest) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Text returns the value of key rendered as text, or "" when absent.
// Non-string scalars are formatted with their JSON representation.
func (m Manifest) Text(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

// Value returns the raw value of key and whether it was declared
func (m Manifest) Value(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

func (m Manifest) Name() string           { return m.Text(FieldName) }
func (m Manifest) Version() string        { return m.Text(FieldVersion) }
func (m Manifest) Description() string    { return m.Text(FieldDescription) }
func (m Manifest) Author() string         { return m.Text(FieldAuthor) }
func (m Manifest) NetworkPolicy() string  { return m.Text(FieldNetworkPolicy) }
func (m Manifest) ResponsibleUse() string { return m.Text(FieldResponsibleUse) }

// PluginRecord is a point-in-time view of one plugin directory. Records are
// built fresh by every Discover call and never mutated afterwards.
type PluginRecord struct {
	Name          string   `json:"name"`
	Path          string   `json:"path"`
	Entrypoint    string   `json:"entrypoint"`
	Runnable      bool     `json:"runnable"`
	Manifest      Manifest `json:"manifest"`
	ValidManifest bool     `json:"valid_manifest"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

// ValidationError represents a manifest validation error
type ValidationError struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// JoinValidationErrors renders a list of validation errors on one line
func JoinValidationErrors(errs []ValidationError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}
