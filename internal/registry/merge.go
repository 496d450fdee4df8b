package registry

import (
	"regexp"
	"strings"
)

var (
	itemSeparators = regexp.MustCompile(`[\r\n,;]+`)
	itemMarker     = regexp.MustCompile(`^(?:[-*•]+|\d+[.)])\s*`)
)

// SplitItems breaks a comma- or newline-delimited answer into atomic items,
// dropping list numbering, bullets and empty entries.
func SplitItems(answer string) []string {
	parts := itemSeparators.Split(answer, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(itemMarker.ReplaceAllString(strings.TrimSpace(p), ""))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SetScalar overwrites a scalar field.
func SetScalar(r Registry, field, value string) Registry {
	value = strings.TrimSpace(value)
	if value == "" {
		return r
	}
	out := r.Clone()
	out[field] = Scalar(value)
	return out
}

// AppendList adds unique items to a flat list field, repairing a wrongly
// shaped existing value first.
func AppendList(r Registry, field string, items []string) Registry {
	if len(items) == 0 {
		return r
	}
	out := r.Clone()
	cur := Coerce(out[field], ShapeList)
	out[field] = cur.withItems(items)
	return out
}

// MergeRoles creates an entry for every new role name. Existing roles keep
// their features.
func MergeRoles(r Registry, names []string) Registry {
	if len(names) == 0 {
		return r
	}
	out := r.Clone()
	roles := rolesField(out)
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		entry, ok := roles.Get(name)
		roles = roles.withEntry(name, roleEntry(entry, ok))
	}
	out[FieldRoles] = roles
	return out
}

// MergeRoleFeatures appends features to one role, creating it when absent.
func MergeRoleFeatures(r Registry, role string, features []string) Registry {
	role = strings.TrimSpace(role)
	if role == "" || len(features) == 0 {
		return r
	}
	out := r.Clone()
	roles := rolesField(out)
	entry, ok := roles.Get(role)
	entry = roleEntry(entry, ok)
	feats, _ := entry.Get(RoleFeaturesKey)
	entry = entry.withEntry(RoleFeaturesKey, feats.withItems(features))
	out[FieldRoles] = roles.withEntry(role, entry)
	return out
}

// MergeGroupEntries merges "Name: a, b" lines into a grouped field. Lines
// without a name go to PendingCategorization.
func MergeGroupEntries(r Registry, field, answer string) Registry {
	lines := strings.FieldsFunc(answer, func(c rune) bool { return c == '\n' || c == '\r' || c == ';' })
	out := r.Clone()
	group := groupField(out, field)
	changed := false
	for _, line := range lines {
		line = strings.TrimSpace(itemMarker.ReplaceAllString(strings.TrimSpace(line), ""))
		if line == "" {
			continue
		}
		name, rest := PendingCategorization, line
		if i := strings.Index(line, ":"); i > 0 && !strings.Contains(line[:i], "//") && !strings.HasPrefix(line[i:], "://") {
			name, rest = strings.TrimSpace(line[:i]), line[i+1:]
		}
		items := SplitItems(rest)
		if len(items) == 0 {
			items = []string{name}
			name = PendingCategorization
		}
		cur, _ := group.Get(name)
		if cur.Kind() != KindGroup {
			cur = Coerce(cur, ShapeList)
		}
		if cur.Kind() == KindGroup {
			pending, _ := cur.Get(PendingCategorization)
			cur = cur.withEntry(PendingCategorization, Coerce(pending, ShapeList).withItems(items))
		} else {
			cur = cur.withItems(items)
		}
		group = group.withEntry(name, cur)
		changed = true
	}
	if !changed {
		return r
	}
	out[field] = group
	return out
}

// MergeGroupList appends unique items to a list stored under key inside a
// grouped field, e.g. design_requirements.inspiration_urls.
func MergeGroupList(r Registry, field, key string, items []string) Registry {
	if len(items) == 0 {
		return r
	}
	out := r.Clone()
	group := groupField(out, field)
	cur, _ := group.Get(key)
	out[field] = group.withEntry(key, Coerce(cur, ShapeList).withItems(items))
	return out
}

// SetGroupScalar overwrites a scalar stored under key inside a grouped field.
func SetGroupScalar(r Registry, field, key, value string) Registry {
	value = strings.TrimSpace(value)
	if value == "" {
		return r
	}
	out := r.Clone()
	out[field] = groupField(out, field).withEntry(key, Scalar(value))
	return out
}

func groupField(r Registry, field string) Value {
	v := Coerce(r[field], ShapeGroup)
	if v.IsZero() {
		return Group(nil)
	}
	return v
}

// rolesField treats a list or scalar stored under roles as role names.
func rolesField(r Registry) Value {
	cur := r[FieldRoles]
	switch cur.Kind() {
	case KindGroup:
		return cur
	case KindList, KindScalar:
		roles := Group(nil)
		for _, name := range Coerce(cur, ShapeList).Items() {
			roles = roles.withEntry(name, roleEntry(Value{}, false))
		}
		return roles
	}
	return Group(nil)
}

func roleEntry(entry Value, ok bool) Value {
	if !ok || entry.IsZero() {
		return Group(map[string]Value{RoleFeaturesKey: List()})
	}
	if entry.Kind() != KindGroup {
		return Group(map[string]Value{RoleFeaturesKey: Coerce(entry, ShapeList)})
	}
	feats, has := entry.Get(RoleFeaturesKey)
	if !has {
		return entry.withEntry(RoleFeaturesKey, List())
	}
	if feats.Kind() != KindList {
		return entry.withEntry(RoleFeaturesKey, Coerce(feats, ShapeList))
	}
	return entry
}
