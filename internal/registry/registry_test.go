package registry

import "testing"

type fakeAlgo struct{ key string }

func (f fakeAlgo) Key() string { return f.key }

func TestAddHasFindScenario(t *testing.T) {
	r := New()
	algo := fakeAlgo{key: "v_eadd_INT__cpu"}

	if err := r.Add("v_eadd_INT__cpu", algo); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if !r.Has("v_eadd_INT__cpu") {
		t.Fatalf("Has(v_eadd_INT__cpu) = false, want true")
	}
	if got := r.Find("v_eadd_INT__cpu"); got == nil || got.Key() != algo.Key() {
		t.Fatalf("Find(v_eadd_INT__cpu) = %v, want %v", got, algo)
	}

	if r.Has("v_eadd_INT__cl") {
		t.Fatalf("Has(v_eadd_INT__cl) = true, want false")
	}
	if got := r.Find("v_eadd_INT__cl"); got != nil {
		t.Fatalf("Find(v_eadd_INT__cl) = %v, want nil", got)
	}
}

func TestHasAgreesWithFindNonNil(t *testing.T) {
	r := New()
	keys := []string{"vxm_PLUS_MULT_INT__cpu", "mxv_PLUS_MULT_FLOAT__cl", "m_reduce_PLUS_DOUBLE__cpu"}
	for _, k := range keys {
		if err := r.Add(k, fakeAlgo{key: k}); err != nil {
			t.Fatalf("Add(%s): %v", k, err)
		}
	}

	probe := append(append([]string{}, keys...), "unregistered_key__cpu")
	for _, k := range probe {
		if r.Has(k) != (r.Find(k) != nil) {
			t.Fatalf("Has(%s) disagrees with Find(%s) != nil", k, k)
		}
	}
}

func TestAddDuplicateKeyIsAnError(t *testing.T) {
	r := New()
	if err := r.Add("k", fakeAlgo{key: "k"}); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := r.Add("k", fakeAlgo{key: "k"}); err == nil {
		t.Fatalf("second Add with the same key succeeded, want error")
	}
}

func TestMustAddPanicsOnDuplicate(t *testing.T) {
	r := New()
	r.MustAdd("k", fakeAlgo{key: "k"})

	defer func() {
		if recover() == nil {
			t.Fatalf("MustAdd did not panic on duplicate key")
		}
	}()
	r.MustAdd("k", fakeAlgo{key: "k"})
}

func TestKeysSorted(t *testing.T) {
	r := New()
	r.MustAdd("b_key", fakeAlgo{key: "b_key"})
	r.MustAdd("a_key", fakeAlgo{key: "a_key"})
	r.MustAdd("c_key", fakeAlgo{key: "c_key"})

	got := r.Keys()
	want := []string{"a_key", "b_key", "c_key"}
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Keys()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
