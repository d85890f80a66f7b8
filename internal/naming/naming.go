// Package naming is the single authority for translating a tenant code into
// the name of its physical database, and for classifying raw database names
// observed on the server. Two naming generations coexist: the legacy prefix
// used by the first deployments and the current one used for every new
// tenant. A tenant's database keeps the name it was created under.
package naming

import (
	"strings"

	"github.com/salonsuite/tenant-management-service/internal/errs"
)

// Generation selects one of the two historical naming schemes.
type Generation string

const (
	GenerationLegacy  Generation = "legacy"
	GenerationCurrent Generation = "current"
)

// ParseGeneration converts a stored generation tag into a Generation.
func ParseGeneration(s string) (Generation, bool) {
	switch Generation(s) {
	case GenerationLegacy, GenerationCurrent:
		return Generation(s), true
	}
	return "", false
}

// Kind buckets a database name observed on the server.
type Kind string

const (
	KindProtected     Kind = "protected"
	KindLegacyTenant  Kind = "legacyTenant"
	KindCurrentTenant Kind = "currentTenant"
	KindControlPlane  Kind = "controlPlane"
	KindUnknown       Kind = "unknown"
)

// Classification is the result of classifying a raw database name. Code is
// set only for the tenant kinds.
type Classification struct {
	Kind Kind
	Code string
}

// Deletable reports whether a database of this kind may ever be offered for
// deletion. The control plane and the server's own databases never are.
func (c Classification) Deletable() bool {
	return c.Kind != KindProtected && c.Kind != KindControlPlane
}

// Reserved databases owned by the server itself.
var systemDatabases = map[string]struct{}{
	"postgres":  {},
	"template0": {},
	"template1": {},
}

const (
	// DefaultControlPlane is the well-known name of the registry database.
	DefaultControlPlane = "tenant_registry"

	defaultLegacyPrefix  = "beautysalon"
	defaultCurrentPrefix = "salon"

	// maxCodeLen keeps the derived name inside PostgreSQL's 63-byte
	// identifier limit under either prefix.
	maxCodeLen = 48
)

// Scheme holds the prefixes of both naming generations and the control-plane
// name. The zero value is not usable; construct via DefaultScheme or fill
// all fields.
type Scheme struct {
	LegacyPrefix  string
	CurrentPrefix string
	ControlPlane  string
}

// DefaultScheme returns the scheme used in production.
func DefaultScheme() Scheme {
	return Scheme{
		LegacyPrefix:  defaultLegacyPrefix,
		CurrentPrefix: defaultCurrentPrefix,
		ControlPlane:  DefaultControlPlane,
	}
}

// ValidateCode checks that code is usable as the suffix of a database
// identifier: lowercase alphanumerics and hyphens, starting and ending with
// an alphanumeric. Underscores are rejected so that classification can split
// a name unambiguously at the prefix.
func ValidateCode(code string) error {
	if code == "" {
		return errs.New(errs.CodeInvalidCode, "tenant code is empty")
	}
	if len(code) > maxCodeLen {
		return errs.Newf(errs.CodeInvalidCode, "tenant code %q exceeds %d characters", code, maxCodeLen)
	}
	for i, r := range code {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if alnum {
			continue
		}
		if r == '-' && i > 0 && i < len(code)-1 {
			continue
		}
		return errs.Newf(errs.CodeInvalidCode, "tenant code %q contains invalid character %q", code, r)
	}
	return nil
}

// Resolve derives the physical database name for code under the given
// generation. Distinct valid codes never collide within a generation.
func (s Scheme) Resolve(code string, gen Generation) (string, error) {
	if err := ValidateCode(code); err != nil {
		return "", err
	}
	switch gen {
	case GenerationLegacy:
		return s.LegacyPrefix + "_" + code, nil
	case GenerationCurrent:
		return s.CurrentPrefix + "_" + code, nil
	}
	return "", errs.Newf(errs.CodeInvalidCode, "unknown naming generation %q", gen)
}

// Classify buckets a raw database name. Tenant kinds carry the extracted
// code; anything that matches neither generation nor a reserved name is
// unknown and therefore a cleanup candidate.
func (s Scheme) Classify(name string) Classification {
	if _, ok := systemDatabases[name]; ok {
		return Classification{Kind: KindProtected}
	}
	if name == s.ControlPlane {
		return Classification{Kind: KindControlPlane}
	}
	if code, ok := cutPrefix(name, s.CurrentPrefix); ok {
		return Classification{Kind: KindCurrentTenant, Code: code}
	}
	if code, ok := cutPrefix(name, s.LegacyPrefix); ok {
		return Classification{Kind: KindLegacyTenant, Code: code}
	}
	return Classification{Kind: KindUnknown}
}

func cutPrefix(name, prefix string) (string, bool) {
	code, ok := strings.CutPrefix(name, prefix+"_")
	if !ok || ValidateCode(code) != nil {
		return "", false
	}
	return code, true
}
