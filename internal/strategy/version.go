package strategy

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// MigrationFunc migrates a Template from one schema version to the next.
type MigrationFunc func(*Template) error

// Migration represents a single schema migration.
type Migration struct {
	FromVersion string
	ToVersion   string
	Name        string
	Migrate     MigrationFunc
}

// registeredMigrations holds all registered migrations in order.
var registeredMigrations []Migration

// migrations maps source version to migration functions (legacy lookup).
var migrations = map[string]MigrationFunc{}

func init() {
	registerMigrations()
}

// registerMigrations sets up all known migrations.
//
// Migration Infrastructure Design:
// - Migrations are registered in chronological order (oldest to newest)
// - Each migration transforms a template from one schema version to the next
// - Migrate applies migrations sequentially based on version comparison
// - GetMigrationPath can be used to preview which migrations will be applied
//
// To add a new migration:
// 1. Add a new Migration struct to registeredMigrations below
// 2. Implement the migration function (e.g., migrateFrom10To11)
// 3. Update SchemaVersion to the new version
func registerMigrations() {
	registeredMigrations = []Migration{
		// No migrations exist yet: 1.0 is the first released schema version.
		// A future "1.0" -> "1.1" migration belongs here, e.g.:
		// {
		//     FromVersion: "1.0",
		//     ToVersion:   "1.1",
		//     Name:        "Add trailing-stop field",
		//     Migrate:     migrateFrom10To11,
		// },
	}

	for _, m := range registeredMigrations {
		if _, err := semver.NewVersion(m.FromVersion); err != nil {
			panic(fmt.Sprintf("invalid FromVersion %q in migration %q: %v", m.FromVersion, m.Name, err))
		}
		if _, err := semver.NewVersion(m.ToVersion); err != nil {
			panic(fmt.Sprintf("invalid ToVersion %q in migration %q: %v", m.ToVersion, m.Name, err))
		}
	}

	if len(registeredMigrations) > 1 {
		for i := 1; i < len(registeredMigrations); i++ {
			prevTo := registeredMigrations[i-1].ToVersion
			currFrom := registeredMigrations[i].FromVersion
			if prevTo != currFrom {
				panic(fmt.Sprintf("migration gap detected: %q ends at %s but %q starts at %s",
					registeredMigrations[i-1].Name, prevTo, registeredMigrations[i].Name, currFrom))
			}
		}
	}

	for _, m := range registeredMigrations {
		migrations[m.FromVersion] = m.Migrate
	}
}

// GetMigrationPath returns the migrations needed to upgrade between two versions.
func GetMigrationPath(fromVersion, toVersion string) ([]Migration, error) {
	from, err := parseVersionLoose(fromVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid from version: %s", fromVersion)
	}
	to, err := parseVersionLoose(toVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid to version: %s", toVersion)
	}

	if from.GreaterThan(to) || from.Equal(to) {
		return nil, nil
	}

	var path []Migration
	for _, m := range registeredMigrations {
		migFrom := semver.MustParse(m.FromVersion)
		migTo := semver.MustParse(m.ToVersion)

		startsAtOrAfterSource := migFrom.GreaterThan(from) || migFrom.Equal(from)
		endsAtOrBeforeTarget := migTo.LessThan(to) || migTo.Equal(to)
		if startsAtOrAfterSource && endsAtOrBeforeTarget {
			path = append(path, m)
		}
	}

	sort.Slice(path, func(i, j int) bool {
		vi := semver.MustParse(path[i].FromVersion)
		vj := semver.MustParse(path[j].FromVersion)
		return vi.LessThan(vj)
	})

	return path, nil
}

// Migrate upgrades a template to the current schema version in place.
func Migrate(t *Template) error {
	if t == nil {
		return fmt.Errorf("template cannot be nil")
	}

	if t.Metadata.SchemaVersion == SchemaVersion {
		return nil
	}

	current, err := parseVersionLoose(t.Metadata.SchemaVersion)
	if err != nil {
		return fmt.Errorf("invalid schema version: %s", t.Metadata.SchemaVersion)
	}

	target, err := semver.NewVersion(SchemaVersion)
	if err != nil {
		return fmt.Errorf("invalid target schema version: %s", SchemaVersion)
	}

	if current.GreaterThan(target) {
		return fmt.Errorf("template schema version %s is newer than supported version %s",
			t.Metadata.SchemaVersion, SchemaVersion)
	}

	for _, m := range registeredMigrations {
		if !semver.MustParse(m.FromVersion).LessThan(current) {
			if err := m.Migrate(t); err != nil {
				return fmt.Errorf("migration from %s failed: %w", m.FromVersion, err)
			}
		}
	}

	t.Metadata.SchemaVersion = SchemaVersion
	return nil
}

// CheckCompatibility reports whether a template can be migrated to the current version.
func CheckCompatibility(t *Template) error {
	if t == nil {
		return fmt.Errorf("template cannot be nil")
	}
	if t.Metadata.SchemaVersion == "" {
		return fmt.Errorf("missing schema version")
	}

	current, err := parseVersionLoose(t.Metadata.SchemaVersion)
	if err != nil {
		return fmt.Errorf("invalid schema version: %s", t.Metadata.SchemaVersion)
	}
	target, err := semver.NewVersion(SchemaVersion)
	if err != nil {
		return fmt.Errorf("invalid target schema version: %s", SchemaVersion)
	}

	if current.GreaterThan(target) {
		return fmt.Errorf("template requires schema version %s, but only %s is supported",
			t.Metadata.SchemaVersion, SchemaVersion)
	}

	if current.LessThan(target) && current.Major() != target.Major() {
		return fmt.Errorf("no migration path from version %s to %s", t.Metadata.SchemaVersion, SchemaVersion)
	}

	return nil
}

// GetSchemaVersion returns the current schema version.
func GetSchemaVersion() string {
	return SchemaVersion
}

// CompareVersions compares two version strings: -1 if a < b, 0 if equal, 1 if a > b.
func CompareVersions(a, b string) (int, error) {
	va, err := parseVersionLoose(a)
	if err != nil {
		return 0, fmt.Errorf("invalid version: %s", a)
	}
	vb, err := parseVersionLoose(b)
	if err != nil {
		return 0, fmt.Errorf("invalid version: %s", b)
	}
	return va.Compare(vb), nil
}

// IsVersionSupported reports whether a schema version is usable, accepting
// any version whose major.minor matches a supported version.
func IsVersionSupported(version string) bool {
	for _, v := range SupportedSchemaVersions {
		if v == version {
			return true
		}
	}

	v, err := parseVersionLoose(version)
	if err != nil {
		return false
	}
	for _, supported := range SupportedSchemaVersions {
		sv, err := semver.NewVersion(supported)
		if err != nil {
			continue
		}
		if v.Major() == sv.Major() && v.Minor() == sv.Minor() {
			return true
		}
	}
	return false
}

// parseVersionLoose parses a semver string, tolerating bare "major.minor" by
// appending ".0" (templates commonly carry "1.0" rather than "1.0.0").
func parseVersionLoose(version string) (*semver.Version, error) {
	if v, err := semver.NewVersion(version); err == nil {
		return v, nil
	}
	return semver.NewVersion(version + ".0")
}

// VersionInfo describes a template's schema-version status.
type VersionInfo struct {
	SchemaVersion     string `json:"schema_version"`
	TemplateVersion   string `json:"template_version,omitempty"`
	IsCompatible      bool   `json:"is_compatible"`
	RequiresMigration bool   `json:"requires_migration"`
	MigrationPath     string `json:"migration_path,omitempty"`
}

// GetVersionInfo returns version status information for a template.
func GetVersionInfo(t *Template) (*VersionInfo, error) {
	if t == nil {
		return nil, fmt.Errorf("template cannot be nil")
	}

	info := &VersionInfo{
		SchemaVersion:   t.Metadata.SchemaVersion,
		TemplateVersion: t.Metadata.Version,
	}

	info.IsCompatible = CheckCompatibility(t) == nil

	if t.Metadata.SchemaVersion != SchemaVersion {
		cmp, err := CompareVersions(t.Metadata.SchemaVersion, SchemaVersion)
		if err == nil && cmp < 0 {
			info.RequiresMigration = true
			info.MigrationPath = fmt.Sprintf("%s -> %s", t.Metadata.SchemaVersion, SchemaVersion)
		}
	}

	return info, nil
}
