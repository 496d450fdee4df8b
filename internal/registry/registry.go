package registry

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Field names written by the merge functions.
const (
	FieldProjectDescription  = "project_description"
	FieldProjectScope        = "project_scope"
	FieldScopeDetails        = "scope_details"
	FieldMigrationStrategy   = "migration_strategy"
	FieldCurrentProcess      = "current_process"
	FieldProjectTimeline     = "project_timeline"
	FieldBudget              = "budget"
	FieldConstraints         = "constraints"
	FieldBusinessGoals       = "business_goals"
	FieldSystemFeatures      = "system_features"
	FieldThirdPartyServices  = "third_party_services"
	FieldAdditionalNotes     = "additional_notes"
	FieldRoles               = "roles"
	FieldDataEntities        = "data_entities"
	FieldIntegrations        = "integrations"
	FieldDesignRequirements  = "design_requirements"
	FieldNonFunctional       = "non_functional_requirements"
	RoleFeaturesKey          = "features"
	PendingCategorization    = "Pending Categorization"
	DesignPreferencesKey     = "design_preferences"
	DesignReferenceURLsKey   = "reference_urls"
	DesignInspirationURLsKey = "inspiration_urls"
	DesignCurrentAppURLKey   = "current_app_url"
	DesignAssetsUploadKey    = "assets_upload"
)

type Shape int

const (
	ShapeScalar Shape = iota + 1
	ShapeList
	ShapeGroup
)

func (s Shape) Kind() Kind { return Kind(s) }

var fieldShapes = map[string]Shape{
	FieldProjectDescription: ShapeScalar,
	FieldProjectScope:       ShapeScalar,
	FieldScopeDetails:       ShapeScalar,
	FieldMigrationStrategy:  ShapeScalar,
	FieldCurrentProcess:     ShapeScalar,
	FieldProjectTimeline:    ShapeScalar,
	FieldBudget:             ShapeScalar,
	FieldConstraints:        ShapeScalar,
	FieldBusinessGoals:      ShapeList,
	FieldSystemFeatures:     ShapeList,
	FieldThirdPartyServices: ShapeList,
	FieldAdditionalNotes:    ShapeList,
	FieldRoles:              ShapeGroup,
	FieldDataEntities:       ShapeGroup,
	FieldIntegrations:       ShapeGroup,
	FieldDesignRequirements: ShapeGroup,
	FieldNonFunctional:      ShapeGroup,
}

// ShapeOf reports the declared shape of a known field.
func ShapeOf(field string) (Shape, bool) {
	s, ok := fieldShapes[field]
	return s, ok
}

// Registry maps field names to values.
type Registry map[string]Value

func New() Registry { return Registry{} }

func (r Registry) Clone() Registry {
	out := make(Registry, len(r))
	for k, v := range r {
		out[k] = v.Clone()
	}
	return out
}

func (r Registry) Equal(o Registry) bool {
	if len(r) != len(o) {
		return false
	}
	for k, v := range r {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

func (r Registry) Get(field string) (Value, bool) {
	v, ok := r[field]
	return v, ok
}

// Keys returns the field names in sorted order.
func (r Registry) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map converts the registry into plain JSON-compatible values.
func (r Registry) Map() map[string]any {
	m := make(map[string]any, len(r))
	for k, v := range r {
		m[k] = v.Any()
	}
	return m
}

// FromMap builds a registry from decoded JSON. Null entries are dropped.
func FromMap(m map[string]any) Registry {
	r := make(Registry, len(m))
	for k, raw := range m {
		if v := FromAny(raw); !v.IsZero() {
			r[k] = v
		}
	}
	return r
}

func (r Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

func (r *Registry) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = Registry{}
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return err
	}
	*r = FromMap(m)
	return nil
}

// Coerce repairs a value into the expected shape without discarding data:
// lists collapse into a joined scalar, scalars become single-item lists, and
// anything that should be a group is parked under PendingCategorization.
func Coerce(v Value, shape Shape) Value {
	if v.IsZero() || v.kind == shape.Kind() {
		return v
	}
	switch shape {
	case ShapeScalar:
		if v.kind == KindGroup {
			return Scalar(strings.Join(flatten(v), ", "))
		}
		return Scalar(v.Text())
	case ShapeList:
		if v.kind == KindGroup {
			return List(flatten(v)...)
		}
		return List(v.scalar)
	case ShapeGroup:
		items := v.Items()
		if v.kind == KindScalar {
			items = []string{v.scalar}
		}
		pending := List(items...)
		if pending.Len() == 0 {
			return Group(nil)
		}
		return Group(map[string]Value{PendingCategorization: pending})
	}
	return v
}

// Normalize coerces every known field of r into its declared shape.
func Normalize(r Registry) Registry {
	out := r.Clone()
	for k, v := range out {
		if shape, ok := fieldShapes[k]; ok {
			out[k] = Coerce(v, shape)
		}
	}
	return out
}

// Reconcile merges the model's updated registry over base without losing
// anything base holds. Groups are merged entry by entry, lists keep base
// items and gain new ones, scalars take the updated text.
func Reconcile(base, updated Registry) Registry {
	out := Normalize(updated)
	for k, v := range Normalize(base) {
		if u, ok := out[k]; ok {
			out[k] = reconcileValue(v, u)
		} else {
			out[k] = v.Clone()
		}
	}
	return out
}

func reconcileValue(base, updated Value) Value {
	if base.IsZero() {
		return updated.Clone()
	}
	if updated.IsZero() {
		return base.Clone()
	}
	if base.kind != updated.kind {
		if base.kind == KindScalar {
			return updated.Clone()
		}
		updated = Coerce(updated, Shape(base.kind))
	}
	switch base.kind {
	case KindList:
		return base.withItems(updated.list)
	case KindGroup:
		out := base.Clone()
		for name, e := range updated.group {
			out.group[name] = reconcileValue(base.group[name], e)
		}
		return out
	default:
		return updated.Clone()
	}
}

func flatten(v Value) []string {
	switch v.kind {
	case KindScalar:
		return []string{v.scalar}
	case KindList:
		return v.Items()
	case KindGroup:
		var out []string
		for _, k := range v.Keys() {
			out = append(out, flatten(v.group[k])...)
		}
		return out
	}
	return nil
}
