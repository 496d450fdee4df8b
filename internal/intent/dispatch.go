package intent

import (
	"strings"

	"go.uber.org/zap"

	"reqgather/internal/metrics"
	"reqgather/internal/registry"
)

// merge applies one answer to the registry. A non-empty skip reason means the
// answer was dropped.
type merge func(d *Dispatcher, r registry.Registry, p *Pending, answer string) (registry.Registry, string)

const skipMissingRole = "missing_role"

var strategies = map[Type]merge{
	DefineScope:             scope,
	ScopeClarification:      scope,
	ProjectDescription:      scalar(registry.FieldProjectDescription),
	MigrationStrategy:       scalar(registry.FieldMigrationStrategy),
	CurrentProcess:          scalar(registry.FieldCurrentProcess),
	ProjectTimeline:         scalar(registry.FieldProjectTimeline),
	Budget:                  scalar(registry.FieldBudget),
	Constraints:             scalar(registry.FieldConstraints),
	RoleDefinition:          roles,
	RoleFeatures:            roleFeatures,
	BusinessGoals:           list(registry.FieldBusinessGoals),
	SystemFeatures:          list(registry.FieldSystemFeatures),
	ThirdPartyServices:      list(registry.FieldThirdPartyServices),
	AdditionalInfo:          list(registry.FieldAdditionalNotes),
	DataEntities:            entries(registry.FieldDataEntities),
	Integrations:            entries(registry.FieldIntegrations),
	DesignPreferences:       groupList(registry.FieldDesignRequirements, registry.DesignPreferencesKey),
	ReferenceURLs:           groupList(registry.FieldDesignRequirements, registry.DesignReferenceURLsKey),
	InspirationURLs:         groupList(registry.FieldDesignRequirements, registry.DesignInspirationURLsKey),
	AssetsUpload:            groupList(registry.FieldDesignRequirements, registry.DesignAssetsUploadKey),
	CurrentAppURL:           groupScalar(registry.FieldDesignRequirements, registry.DesignCurrentAppURLKey),
	SecurityRequirements:    groupScalar(registry.FieldNonFunctional, "security"),
	ComplianceRequirements:  groupScalar(registry.FieldNonFunctional, "compliance"),
	PerformanceRequirements: groupScalar(registry.FieldNonFunctional, "performance"),
	TechStackPreference:     groupScalar(registry.FieldNonFunctional, "tech_stack"),
}

// Dispatcher routes answers to merges through a static table.
type Dispatcher struct {
	log      *zap.Logger
	metrics  *metrics.Metrics
	classify registry.ScopeClassifier
}

type Option func(*Dispatcher)

// WithScopeClassifier swaps the scope keyword heuristic.
func WithScopeClassifier(c registry.ScopeClassifier) Option {
	return func(d *Dispatcher) { d.classify = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func NewDispatcher(log *zap.Logger, opts ...Option) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{log: log, classify: registry.ClassifyScope}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Apply merges answer into r under p. A nil intent, a blank answer and an
// unknown intent type all return r unchanged.
func (d *Dispatcher) Apply(p *Pending, r registry.Registry, answer string) registry.Registry {
	if p == nil || strings.TrimSpace(answer) == "" {
		return r
	}
	m, ok := strategies[p.Type]
	if !ok {
		d.log.Debug("unknown intent, answer not merged", zap.String("intent", string(p.Type)))
		return r
	}
	out, skip := m(d, r, p, answer)
	if skip != "" {
		d.log.Warn("answer dropped",
			zap.String("intent", string(p.Type)),
			zap.String("reason", skip),
			zap.String("answer", answer))
		d.metrics.MergeSkipped(skip)
		return r
	}
	return out
}

func scope(d *Dispatcher, r registry.Registry, _ *Pending, answer string) (registry.Registry, string) {
	return registry.MergeScope(r, answer, d.classify), ""
}

func roles(_ *Dispatcher, r registry.Registry, _ *Pending, answer string) (registry.Registry, string) {
	return registry.MergeRoles(r, registry.SplitItems(answer)), ""
}

func roleFeatures(_ *Dispatcher, r registry.Registry, p *Pending, answer string) (registry.Registry, string) {
	role := p.RoleName()
	if role == "" {
		return r, skipMissingRole
	}
	return registry.MergeRoleFeatures(r, role, registry.SplitItems(answer)), ""
}

func scalar(field string) merge {
	return func(_ *Dispatcher, r registry.Registry, _ *Pending, answer string) (registry.Registry, string) {
		return registry.SetScalar(r, field, answer), ""
	}
}

func list(field string) merge {
	return func(_ *Dispatcher, r registry.Registry, _ *Pending, answer string) (registry.Registry, string) {
		return registry.AppendList(r, field, registry.SplitItems(answer)), ""
	}
}

func entries(field string) merge {
	return func(_ *Dispatcher, r registry.Registry, _ *Pending, answer string) (registry.Registry, string) {
		return registry.MergeGroupEntries(r, field, answer), ""
	}
}

func groupList(field, key string) merge {
	return func(_ *Dispatcher, r registry.Registry, _ *Pending, answer string) (registry.Registry, string) {
		return registry.MergeGroupList(r, field, key, registry.SplitItems(answer)), ""
	}
}

func groupScalar(field, key string) merge {
	return func(_ *Dispatcher, r registry.Registry, _ *Pending, answer string) (registry.Registry, string) {
		return registry.SetGroupScalar(r, field, key, answer), ""
	}
}
