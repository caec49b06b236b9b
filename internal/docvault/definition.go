package docvault

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"docvault/internal/model"
)

//go:embed template_schema.json
var templateSchemaJSON string

// templateDefinition is the external JSON shape of a template, without
// identity or timestamps. Those are assigned by the caller on import.
type templateDefinition struct {
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	DocumentType string               `json:"documentType"`
	IsActive     *bool                `json:"isActive"`
	Version      int                  `json:"version"`
	Config       model.TemplateConfig `json:"config"`
}

// ParseTemplateDefinition validates raw JSON against the template schema
// and decodes it into a DocumentTemplate. The returned template has no
// identifier or timestamps; IsActive defaults to true and Version to 1
// when omitted.
func ParseTemplateDefinition(raw []byte) (*model.DocumentTemplate, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(templateSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compiling template schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("validating template definition: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return nil, fmt.Errorf("invalid template definition: %s", strings.Join(errs, "; "))
	}

	var def templateDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("decoding template definition: %w", err)
	}

	active := true
	if def.IsActive != nil {
		active = *def.IsActive
	}
	version := def.Version
	if version == 0 {
		version = 1
	}
	return &model.DocumentTemplate{
		Name:         def.Name,
		Description:  def.Description,
		DocumentType: def.DocumentType,
		Config:       def.Config,
		IsActive:     active,
		Version:      version,
	}, nil
}
