package knowledge

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// Base is the immutable knowledge table. All indices are built once by
// NewBase; every accessor returns copies, so a *Base may be shared by any
// number of goroutines without locking.
type Base struct {
	profiles []BehaviorProfile
	byID     map[string]int
	// regionIndex maps a region to the indices of the profiles that weight it.
	regionIndex map[string][]int
	regions     []string
	catalog     map[string]RegionCatalogEntry
}

// NewBase validates profiles and catalog and builds the lookup indices.
// Any invalid record rejects the whole input with ErrCodeInvalidConfiguration.
func NewBase(profiles []BehaviorProfile, catalog []RegionCatalogEntry) (*Base, error) {
	b := &Base{
		profiles:    make([]BehaviorProfile, 0, len(profiles)),
		byID:        make(map[string]int, len(profiles)),
		regionIndex: make(map[string][]int),
		catalog:     make(map[string]RegionCatalogEntry, len(catalog)),
	}

	for i, p := range profiles {
		if err := validateProfile(p); err != nil {
			return nil, err.WithDetail(fmt.Sprintf("profile[%d]", i))
		}
		if _, dup := b.byID[p.BehaviorID]; dup {
			return nil, errors.InvalidConfiguration(fmt.Sprintf("duplicate behavior %q", p.BehaviorID))
		}
		idx := len(b.profiles)
		b.byID[p.BehaviorID] = idx
		b.profiles = append(b.profiles, p.clone())

		for _, rw := range p.RegionWeights {
			refs := b.regionIndex[rw.Region]
			// A region listed twice in one profile is indexed once.
			if n := len(refs); n > 0 && refs[n-1] == idx {
				continue
			}
			b.regionIndex[rw.Region] = append(refs, idx)
		}
	}

	b.regions = make([]string, 0, len(b.regionIndex))
	for r := range b.regionIndex {
		b.regions = append(b.regions, r)
	}
	sort.Strings(b.regions)

	for _, e := range catalog {
		if err := validateCatalogEntry(e); err != nil {
			return nil, err
		}
		if _, dup := b.catalog[e.Region]; dup {
			return nil, errors.InvalidConfiguration(fmt.Sprintf("duplicate catalog region %q", e.Region))
		}
		b.catalog[e.Region] = e.clone()
	}
	return b, nil
}

func validateProfile(p BehaviorProfile) *errors.AppError {
	if strings.TrimSpace(p.BehaviorID) == "" {
		return errors.InvalidConfiguration("behavior id must not be empty")
	}
	if len(p.RegionWeights) == 0 {
		return errors.InvalidConfiguration(fmt.Sprintf("behavior %q has no region weights", p.BehaviorID))
	}
	for _, rw := range p.RegionWeights {
		if strings.TrimSpace(rw.Region) == "" {
			return errors.InvalidConfiguration(fmt.Sprintf("behavior %q has a region weight without a region", p.BehaviorID))
		}
		if math.IsNaN(rw.Weight) || math.IsInf(rw.Weight, 0) || rw.Weight < 0 {
			return errors.InvalidConfiguration(
				fmt.Sprintf("behavior %q region %q has invalid weight %v", p.BehaviorID, rw.Region, rw.Weight))
		}
	}
	if n := p.Normalization; n != nil {
		if math.IsNaN(n.Mean) || math.IsInf(n.Mean, 0) || math.IsNaN(n.StdDev) || math.IsInf(n.StdDev, 0) {
			return errors.InvalidConfiguration(fmt.Sprintf("behavior %q has non-finite normalization parameters", p.BehaviorID))
		}
		// A non-positive StdDev is reported when the profile is scored.
	}
	return nil
}

func validateCatalogEntry(e RegionCatalogEntry) *errors.AppError {
	if strings.TrimSpace(e.Region) == "" {
		return errors.InvalidConfiguration("catalog region must not be empty")
	}
	for i, band := range e.Thresholds {
		if math.IsNaN(band.Min) || math.IsInf(band.Min, 0) {
			return errors.InvalidConfiguration(fmt.Sprintf("region %q threshold %d has non-finite min", e.Region, i))
		}
		if i > 0 && band.Min >= e.Thresholds[i-1].Min {
			return errors.InvalidConfiguration(fmt.Sprintf(
				"region %q thresholds must be strictly descending by min (%v after %v)",
				e.Region, band.Min, e.Thresholds[i-1].Min))
		}
	}
	return nil
}

// FindProfile returns a copy of the profile for behaviorID.
func (b *Base) FindProfile(behaviorID string) (BehaviorProfile, bool) {
	idx, ok := b.byID[behaviorID]
	if !ok {
		return BehaviorProfile{}, false
	}
	return b.profiles[idx].clone(), true
}

// ListBehaviors returns behavior ids in load order.
func (b *Base) ListBehaviors() []string {
	out := make([]string, len(b.profiles))
	for i, p := range b.profiles {
		out[i] = p.BehaviorID
	}
	return out
}

// ListRegions returns every region referenced by a profile, sorted and unique.
func (b *Base) ListRegions() []string {
	return append([]string(nil), b.regions...)
}

// CatalogEntry returns a copy of the catalog entry for region.
func (b *Base) CatalogEntry(region string) (RegionCatalogEntry, bool) {
	e, ok := b.catalog[region]
	if !ok {
		return RegionCatalogEntry{}, false
	}
	return e.clone(), true
}

// CatalogRegions returns the regions described by the catalog, sorted.
func (b *Base) CatalogRegions() []string {
	out := make([]string, 0, len(b.catalog))
	for r := range b.catalog {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// BehaviorsForRegion returns, in load order, the behaviors whose profile
// weights region. Unknown regions yield an empty slice.
func (b *Base) BehaviorsForRegion(region string) []string {
	refs := b.regionIndex[region]
	out := make([]string, len(refs))
	for i, idx := range refs {
		out[i] = b.profiles[idx].BehaviorID
	}
	return out
}

// HasRegion reports whether region is known to a profile or the catalog.
func (b *Base) HasRegion(region string) bool {
	if _, ok := b.regionIndex[region]; ok {
		return true
	}
	_, ok := b.catalog[region]
	return ok
}

// ProfileCount is the number of behavior profiles.
func (b *Base) ProfileCount() int { return len(b.profiles) }

// RegionCount is the number of distinct profile regions.
func (b *Base) RegionCount() int { return len(b.regions) }
