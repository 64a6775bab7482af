// SPDX-License-Identifier: AGPL-3.0-or-later

package skillspec

import (
	"github.com/invopop/jsonschema"
)

// JSONSchema describes the specification document for external tooling, such
// as generators that must emit a document Validate accepts.
func JSONSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(&Specification{})
	s.Title = "SkillSpec"
	return s
}

// JSONSchemaExtend adds the constraints struct tags cannot express.
func (Specification) JSONSchemaExtend(s *jsonschema.Schema) {
	s.AdditionalProperties = jsonschema.FalseSchema
	if p, ok := s.Properties.Get("skill_id"); ok {
		p.Pattern = skillIDPattern.String()
	}
	if p, ok := s.Properties.Get("invocation"); ok {
		p.Pattern = invocationPattern.String()
	}
	if p, ok := s.Properties.Get("title"); ok {
		max := uint64(maxTitleLen)
		p.MaxLength = &max
	}
	if p, ok := s.Properties.Get("description"); ok {
		max := uint64(maxDescriptionLen)
		p.MaxLength = &max
	}
}

// JSONSchemaExtend bounds the step name length.
func (Step) JSONSchemaExtend(s *jsonschema.Schema) {
	if p, ok := s.Properties.Get("name"); ok {
		max := uint64(maxStepNameLen)
		p.MaxLength = &max
	}
}
