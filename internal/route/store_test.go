package route_test

import (
	"errors"
	"testing"

	"github.com/routevox/routevox/internal/route"
)

func TestStopList_ByID(t *testing.T) {
	t.Parallel()

	l := route.NewStopList([]route.Stop{
		{ID: "a", AddressLine1: "1 First St"},
		{ID: "b", AddressLine1: "2 Second St"},
		{ID: "c", AddressLine1: "3 Third St"},
	})

	stop, pos, err := l.ByID("b")
	if err != nil {
		t.Fatalf("ByID(b): %v", err)
	}
	if stop.AddressLine1 != "2 Second St" {
		t.Errorf("address=%q, want %q", stop.AddressLine1, "2 Second St")
	}
	if pos != 2 {
		t.Errorf("position=%d, want 2", pos)
	}

	if _, _, err := l.ByID("missing"); !errors.Is(err, route.ErrStopNotFound) {
		t.Errorf("ByID(missing): err=%v, want ErrStopNotFound", err)
	}
}

func TestStopList_ReplaceIsolatesInput(t *testing.T) {
	t.Parallel()

	in := []route.Stop{{ID: "a", AddressLine1: "1 First St"}}
	l := route.NewStopList(in)
	in[0].AddressLine1 = "mutated"

	stop, _, err := l.ByID("a")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if stop.AddressLine1 != "1 First St" {
		t.Errorf("address=%q, caller mutation leaked into snapshot", stop.AddressLine1)
	}
}

func TestStopList_RemoveShiftsPositions(t *testing.T) {
	t.Parallel()

	l := route.NewStopList([]route.Stop{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	if err := l.Remove("a"); err != nil {
		t.Fatalf("Remove(a): %v", err)
	}
	_, pos, err := l.ByID("c")
	if err != nil {
		t.Fatalf("ByID(c): %v", err)
	}
	if pos != 2 {
		t.Errorf("position=%d, want 2 after removal", pos)
	}
	if err := l.Remove("a"); !errors.Is(err, route.ErrStopNotFound) {
		t.Errorf("second Remove(a): err=%v, want ErrStopNotFound", err)
	}
}

func TestPackageStore_AppendRemoveRestore(t *testing.T) {
	t.Parallel()

	ps := route.NewPackageStore()
	p1 := route.NewPackage()
	p2 := route.NewPackage()
	ps.Append(p1)
	ps.Append(p2)

	removed, err := ps.RemoveLast()
	if err != nil {
		t.Fatalf("RemoveLast: %v", err)
	}
	if removed.ID != p2.ID {
		t.Errorf("removed=%q, want %q (most recent)", removed.ID, p2.ID)
	}
	if ps.Len() != 1 {
		t.Errorf("len=%d, want 1", ps.Len())
	}

	restored, err := ps.Restore()
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.ID != p2.ID {
		t.Errorf("restored=%q, want %q", restored.ID, p2.ID)
	}
	if ps.Len() != 2 {
		t.Errorf("len=%d, want 2", ps.Len())
	}

	// A second restore has nothing left to bring back.
	if _, err := ps.Restore(); !errors.Is(err, route.ErrNoPackages) {
		t.Errorf("second Restore: err=%v, want ErrNoPackages", err)
	}
}

func TestPackageStore_RemoveLastEmpty(t *testing.T) {
	t.Parallel()

	ps := route.NewPackageStore()
	if _, err := ps.RemoveLast(); !errors.Is(err, route.ErrNoPackages) {
		t.Errorf("RemoveLast on empty: err=%v, want ErrNoPackages", err)
	}
}

func TestPackageStore_MarkDelivered(t *testing.T) {
	t.Parallel()

	ps := route.NewPackageStore()
	pkg := route.NewPackage()
	ps.Append(pkg)

	if !ps.MarkDelivered(pkg.ID) {
		t.Fatal("MarkDelivered returned false for existing package")
	}
	all := ps.All()
	if len(all) != 1 || !all[0].Delivered {
		t.Errorf("packages=%+v, want delivered", all)
	}
	if ps.MarkDelivered("missing") {
		t.Error("MarkDelivered(missing)=true, want false")
	}
}

func TestStop_FullAddress(t *testing.T) {
	t.Parallel()

	s := route.Stop{
		AddressLine1: "333 Fleming Road",
		City:         "Springfield",
		State:        "IL",
		Zip:          "62701",
	}
	want := "333 Fleming Road Springfield IL 62701"
	if got := s.FullAddress(); got != want {
		t.Errorf("FullAddress()=%q, want %q", got, want)
	}

	// Derived on demand: changing a field changes the result.
	s.City = "Shelbyville"
	if got := s.FullAddress(); got == want {
		t.Error("FullAddress() did not reflect field change")
	}
}

func TestNewPackage_Defaults(t *testing.T) {
	t.Parallel()

	pkg := route.NewPackage()
	if pkg.ID == "" {
		t.Error("ID is empty")
	}
	if pkg.Size != route.SizeMedium {
		t.Errorf("size=%q, want medium", pkg.Size)
	}
	if pkg.Delivered {
		t.Error("delivered=true, want false")
	}
}
