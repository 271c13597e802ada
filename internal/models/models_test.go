package models

import "testing"

func TestKnownCollection(t *testing.T) {
	for _, c := range Collections {
		if !KnownCollection(c) {
			t.Errorf("KnownCollection(%q) = false", c)
		}
	}
	if KnownCollection("reservations") {
		t.Error(`KnownCollection("reservations") = true`)
	}
	if KnownCollection("") {
		t.Error(`KnownCollection("") = true`)
	}
}

func TestCollectionPolicies(t *testing.T) {
	if !ClientAuthoritative(CollectionShifts) {
		t.Error("shifts should be client-authoritative")
	}
	for _, c := range Collections {
		if c != CollectionShifts && ClientAuthoritative(c) {
			t.Errorf("ClientAuthoritative(%q) = true", c)
		}
	}

	sensitive := map[Collection]bool{CollectionStaff: true, CollectionCustomers: true}
	for _, c := range Collections {
		if got := SensitiveCollection(c); got != sensitive[c] {
			t.Errorf("SensitiveCollection(%q) = %v, want %v", c, got, sensitive[c])
		}
	}
}

func TestChangeSetEmptyAndCount(t *testing.T) {
	var cs ChangeSet
	if !cs.Empty() {
		t.Error("nil ChangeSet should be empty")
	}
	if cs.Count() != 0 {
		t.Errorf("nil ChangeSet Count() = %d", cs.Count())
	}

	cs = ChangeSet{
		CollectionOrders: {},
	}
	if !cs.Empty() {
		t.Error("ChangeSet with only zero deltas should be empty")
	}

	cs = ChangeSet{
		CollectionOrders: {
			Created: []RemoteRecord{{LocalID: "a"}},
			Updated: []RemoteRecord{{LocalID: "b"}},
		},
		CollectionShifts: {
			Deleted: []string{"srv-1", "srv-2"},
		},
	}
	if cs.Empty() {
		t.Error("populated ChangeSet reported empty")
	}
	if got := cs.Count(); got != 4 {
		t.Errorf("Count() = %d, want 4", got)
	}
}
