package registry

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryJSONRoundTrip(t *testing.T) {
	raw := `{
		"project_description": "Inventory app",
		"business_goals": ["Cut costs", "Cut costs", "Grow"],
		"roles": {"Admin": {"features": ["Manage users"]}},
		"budget": 5000,
		"approved": true,
		"legacy": null
	}`
	var r Registry
	require.NoError(t, json.Unmarshal([]byte(raw), &r))

	want := map[string]any{
		"project_description": "Inventory app",
		"business_goals":      []string{"Cut costs", "Grow"},
		"roles":               map[string]any{"Admin": map[string]any{"features": []string{"Manage users"}}},
		"budget":              "5000",
		"approved":            "true",
	}
	if diff := cmp.Diff(want, r.Map()); diff != "" {
		t.Fatalf("decoded registry mismatch (-want +got):\n%s", diff)
	}

	b, err := json.Marshal(r)
	require.NoError(t, err)
	var again Registry
	require.NoError(t, json.Unmarshal(b, &again))
	assert.True(t, r.Equal(again))
}

func TestRegistryUnmarshalNull(t *testing.T) {
	var r Registry
	require.NoError(t, json.Unmarshal([]byte("null"), &r))
	assert.NotNil(t, r)
	assert.Empty(t, r)
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name  string
		in    Value
		shape Shape
		want  any
	}{
		{"list to scalar", List("a", "b"), ShapeScalar, "a, b"},
		{"scalar to list", Scalar("a"), ShapeList, []string{"a"}},
		{"group to list", Group(map[string]Value{"x": List("a"), "y": Scalar("b")}), ShapeList, []string{"a", "b"}},
		{"list to group", List("a", "b"), ShapeGroup, map[string]any{PendingCategorization: []string{"a", "b"}}},
		{"scalar to group", Scalar("a"), ShapeGroup, map[string]any{PendingCategorization: []string{"a"}}},
		{"empty list to group", List(), ShapeGroup, map[string]any{}},
		{"already right", List("a"), ShapeList, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Coerce(tt.in, tt.shape)
			assert.Equal(t, tt.shape.Kind(), got.Kind())
			if diff := cmp.Diff(tt.want, got.Any()); diff != "" {
				t.Fatalf("coerce mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReconcile_CarriesOmittedFields(t *testing.T) {
	base := Registry{
		FieldProjectDescription: Scalar("CRM"),
		FieldBusinessGoals:      List("Grow"),
	}
	updated := Registry{
		FieldProjectDescription: Scalar("CRM for dentists"),
		FieldDataEntities:       List("Patient"),
	}
	got := Reconcile(base, updated)

	want := map[string]any{
		FieldProjectDescription: "CRM for dentists",
		FieldBusinessGoals:      []string{"Grow"},
		FieldDataEntities:       map[string]any{PendingCategorization: []string{"Patient"}},
	}
	if diff := cmp.Diff(want, got.Map()); diff != "" {
		t.Fatalf("reconcile mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "CRM", base[FieldProjectDescription].Text(), "base must not be mutated")
}

func TestReconcile_KeepsNestedEntries(t *testing.T) {
	base := Registry{
		FieldRoles: Group(map[string]Value{
			"Admin":  Group(map[string]Value{RoleFeaturesKey: List("manage users")}),
			"Doctor": Group(map[string]Value{RoleFeaturesKey: List("view patients")}),
		}),
		FieldBusinessGoals: List("Grow", "Retain"),
		FieldBudget:        Scalar("10k"),
	}
	updated := Registry{
		FieldRoles: Group(map[string]Value{
			"Admin": Group(map[string]Value{RoleFeaturesKey: List("audit log")}),
		}),
		FieldBusinessGoals: List("Retain", "Expand"),
		FieldBudget:        Scalar("20k"),
	}
	got := Reconcile(base, updated)

	want := map[string]any{
		FieldRoles: map[string]any{
			"Admin":  map[string]any{RoleFeaturesKey: []string{"manage users", "audit log"}},
			"Doctor": map[string]any{RoleFeaturesKey: []string{"view patients"}},
		},
		FieldBusinessGoals: []string{"Grow", "Retain", "Expand"},
		FieldBudget:        "20k",
	}
	if diff := cmp.Diff(want, got.Map()); diff != "" {
		t.Fatalf("reconcile mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile_MismatchedNestedShapes(t *testing.T) {
	base := Registry{FieldRoles: Group(map[string]Value{
		"Nurse": Group(map[string]Value{RoleFeaturesKey: List("triage")}),
	})}
	updated := Registry{FieldRoles: Group(map[string]Value{
		"Nurse": Scalar("night shift"),
	})}
	got := Reconcile(base, updated)

	nurse, ok := got[FieldRoles].Get("Nurse")
	require.True(t, ok)
	feats, ok := nurse.Get(RoleFeaturesKey)
	require.True(t, ok)
	assert.Equal(t, []string{"triage"}, feats.Items())
	pending, ok := nurse.Get(PendingCategorization)
	require.True(t, ok)
	assert.Equal(t, []string{"night shift"}, pending.Items())
}

func TestCloneIsDeep(t *testing.T) {
	r := Registry{FieldRoles: Group(map[string]Value{"Admin": Group(map[string]Value{RoleFeaturesKey: List("a")})})}
	c := r.Clone()
	c = MergeRoleFeatures(c, "Admin", []string{"b"})

	admin, _ := r[FieldRoles].Get("Admin")
	feats, _ := admin.Get(RoleFeaturesKey)
	assert.Equal(t, []string{"a"}, feats.Items())
	assert.False(t, r.Equal(c))
}
