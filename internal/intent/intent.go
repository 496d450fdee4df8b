// Package intent routes an answer to the registry merge that its pending
// intent names, and normalizes declined answers before they are merged.
package intent

import (
	"encoding/json"
	"strings"
)

// Type tags which registry field the next answer is meant to populate.
type Type string

const (
	DefineScope             Type = "DEFINE_SCOPE"
	ScopeClarification      Type = "SCOPE_CLARIFICATION"
	ProjectDescription      Type = "PROJECT_DESCRIPTION"
	MigrationStrategy       Type = "MIGRATION_STRATEGY"
	RoleDefinition          Type = "ROLE_DEFINITION"
	BusinessGoals           Type = "BUSINESS_GOALS"
	CurrentProcess          Type = "CURRENT_PROCESS"
	RoleFeatures            Type = "ROLE_FEATURES"
	SystemFeatures          Type = "SYSTEM_FEATURES"
	DataEntities            Type = "DATA_ENTITIES"
	Integrations            Type = "INTEGRATIONS"
	ThirdPartyServices      Type = "THIRD_PARTY_SERVICES"
	DesignPreferences       Type = "DESIGN_PREFERENCES"
	ReferenceURLs           Type = "REFERENCE_URLS"
	InspirationURLs         Type = "INSPIRATION_URLS"
	CurrentAppURL           Type = "CURRENT_APP_URL"
	AssetsUpload            Type = "ASSETS_UPLOAD"
	SecurityRequirements    Type = "SECURITY_REQUIREMENTS"
	ComplianceRequirements  Type = "COMPLIANCE_REQUIREMENTS"
	PerformanceRequirements Type = "PERFORMANCE_REQUIREMENTS"
	TechStackPreference     Type = "TECH_STACK_PREFERENCE"
	ProjectTimeline         Type = "PROJECT_TIMELINE"
	Budget                  Type = "BUDGET"
	Constraints             Type = "CONSTRAINTS"
	AdditionalInfo          Type = "ADDITIONAL_INFO"
)

// Types lists every intent the model may emit, in interview order.
var Types = []Type{
	DefineScope, ScopeClarification, ProjectDescription, MigrationStrategy,
	RoleDefinition, BusinessGoals, CurrentProcess, RoleFeatures, SystemFeatures,
	DataEntities, Integrations, ThirdPartyServices, DesignPreferences,
	ReferenceURLs, InspirationURLs, CurrentAppURL, AssetsUpload,
	SecurityRequirements, ComplianceRequirements, PerformanceRequirements,
	TechStackPreference, ProjectTimeline, Budget, Constraints, AdditionalInfo,
}

// Known reports whether t is part of the whitelist.
func (t Type) Known() bool {
	_, ok := strategies[t]
	return ok
}

// Pending is the intent the last question was asked under.
type Pending struct {
	Type Type    `json:"type" validate:"required"`
	Role *string `json:"role,omitempty"`
}

// New builds a pending intent; an empty role means none.
func New(t Type, role string) *Pending {
	p := &Pending{Type: t}
	if r := strings.TrimSpace(role); r != "" {
		p.Role = &r
	}
	return p
}

// RoleName returns the trimmed role or "".
func (p *Pending) RoleName() string {
	if p == nil || p.Role == nil {
		return ""
	}
	return strings.TrimSpace(*p.Role)
}

func (p *Pending) Clone() *Pending {
	if p == nil {
		return nil
	}
	return New(p.Type, p.RoleName())
}

func (p *Pending) String() string {
	if p == nil {
		return "<none>"
	}
	if r := p.RoleName(); r != "" {
		return string(p.Type) + "(" + r + ")"
	}
	return string(p.Type)
}

// UnmarshalJSON upper-cases the type so "role_features" is accepted too.
func (p *Pending) UnmarshalJSON(data []byte) error {
	type alias Pending
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	a.Type = Type(strings.ToUpper(strings.TrimSpace(string(a.Type))))
	if a.Role != nil {
		r := strings.TrimSpace(*a.Role)
		if r == "" {
			a.Role = nil
		} else {
			a.Role = &r
		}
	}
	*p = Pending(a)
	return nil
}
