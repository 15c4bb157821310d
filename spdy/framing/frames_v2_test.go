package framing

import "testing"

func namesOf(b headerBlockV2) []string {
	var names []string
	for _, nv := range b {
		names = append(names, nv.Name)
	}
	return names
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSortedInsertKeepsHeaderBlockV2Ordered(t *testing.T) {
	var b headerBlockV2
	sortedInsert((*[]nameValueV2)(&b), 0, nameValueV2{"a", "b"})
	sortedInsert((*[]nameValueV2)(&b), 0, nameValueV2{"c", "d"})
	sortedInsert((*[]nameValueV2)(&b), 2, nameValueV2{"e", "f"})
	sortedInsert((*[]nameValueV2)(&b), 1, nameValueV2{"g", "h"})

	if want := []string{"c", "g", "a", "e"}; !equalStrings(namesOf(b), want) {
		t.Fatalf("names = %v, want %v", namesOf(b), want)
	}
}

func TestSortedDeleteShiftsHeaderBlockV2(t *testing.T) {
	b := headerBlockV2{{Name: "c"}, {Name: "g"}, {Name: "a"}, {Name: "e"}}

	sortedDelete((*[]nameValueV2)(&b), 0)
	if want := []string{"g", "a", "e"}; !equalStrings(namesOf(b), want) {
		t.Fatalf("names = %v, want %v", namesOf(b), want)
	}

	sortedDelete((*[]nameValueV2)(&b), 2)
	if want := []string{"g", "a"}; !equalStrings(namesOf(b), want) {
		t.Fatalf("names = %v, want %v", namesOf(b), want)
	}
}

func TestHeaderBlockV2AddKeepsNamesSortedAndLowercased(t *testing.T) {
	var b headerBlockV2
	for _, name := range []string{"K1", "c1", "d1"} {
		if err := b.Add(name, "v-"+name); err != nil {
			t.Fatalf("Add(%q): %v", name, err)
		}
	}
	if want := []string{"c1", "d1", "k1"}; !equalStrings(b.Names(), want) {
		t.Fatalf("Names() = %v, want %v", b.Names(), want)
	}
}

func TestHeaderBlockV2AddAppendsRepeatedNameInsteadOfReplacing(t *testing.T) {
	var b headerBlockV2
	if err := b.Add("d1", "v3"); err != nil {
		t.Fatal(err)
	}
	if err := b.Add("D1", "v4", "v5"); err != nil {
		t.Fatal(err)
	}

	if v := b.GetFirst("d1"); v != "v3" {
		t.Fatalf("GetFirst = %q, want v3", v)
	}
	if got, want := b.Get("d1"), []string{"v3", "v4", "v5"}; !equalStrings(got, want) {
		t.Fatalf("Get = %v, want %v", got, want)
	}
}

func TestHeaderBlockV2GetUnknownName(t *testing.T) {
	var b headerBlockV2
	if err := b.Add("c1", "v2"); err != nil {
		t.Fatal(err)
	}

	if v := b.GetFirst("absent"); v != "" {
		t.Fatalf("GetFirst(absent) = %q, want empty", v)
	}
	if vs := b.Get("absent"); len(vs) != 0 {
		t.Fatalf("Get(absent) = %v, want none", vs)
	}
	if got, want := b.Get("c1"), []string{"v2"}; !equalStrings(got, want) {
		t.Fatalf("Get(c1) = %v, want %v", got, want)
	}
}
