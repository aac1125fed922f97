// Package route defines the delivery-route domain model shared by the matching
// engine and the voice session: ordered stop lists and the package records
// produced during vehicle loading.
package route

import (
	"strings"

	"github.com/google/uuid"
)

// Size classifies a package's physical size class.
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// IsValid reports whether s is a recognised package size.
func (s Size) IsValid() bool {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge:
		return true
	}
	return false
}

// Stop is a single delivery location on a route. Stops are owned by the route
// list; their 1-based position in the list is the stop number shown to drivers.
type Stop struct {
	// ID is the stable unique identifier assigned at creation. Immutable.
	ID string

	// AddressLine1 is the street address (e.g., "333 Fleming Road").
	AddressLine1 string

	// AddressLine2 is an optional unit/suite line.
	AddressLine2 string

	City  string
	State string
	Zip   string

	// Lat and Lng are geocoordinates. Both zero means never geocoded.
	Lat float64
	Lng float64

	// Notes is free text attached by the driver (landmarks, gate codes, …).
	Notes string
}

// FullAddress returns the concatenation of all non-empty address fields,
// space-joined. It is derived on demand rather than cached so that it can
// never drift from the address fields it is built from.
func (s Stop) FullAddress() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{s.AddressLine1, s.AddressLine2, s.City, s.State, s.Zip} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// NewStop creates a Stop with a generated ID and the given street address.
func NewStop(addressLine1 string) Stop {
	return Stop{
		ID:           uuid.NewString(),
		AddressLine1: addressLine1,
	}
}

// Package is a parcel awaiting delivery, created by scan, manual entry, or a
// committed voice match.
type Package struct {
	// ID is generated at creation.
	ID string

	// Tracking is the carrier tracking string, if scanned.
	Tracking string

	// Size defaults to SizeMedium when the transcript carried no size keyword.
	Size Size

	// Notes is free text, including the "Priority" note appended by extraction.
	Notes string

	// AssignedStopID is a weak reference to a Stop. Lookup only, no ownership:
	// it may dangle after the stop is deleted, in which case the package is
	// treated as unassigned. When both AssignedStopID and AssignedStopNumber
	// are set, the ID is authoritative.
	AssignedStopID string

	// AssignedStopNumber is a cached 1-based position used as a display
	// fallback when AssignedStopID is absent. Never trusted for commit
	// decisions; recomputed at read time where possible.
	AssignedStopNumber int

	// AssignedAddress is a denormalized copy of the stop's address taken at
	// assignment time, so display does not require a live stop lookup.
	AssignedAddress string

	// Delivered marks the package as dropped off. Defaults to false.
	Delivered bool
}

// NewPackage creates a Package with a generated ID and the default size.
func NewPackage() Package {
	return Package{
		ID:   uuid.NewString(),
		Size: SizeMedium,
	}
}
