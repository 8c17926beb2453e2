package dictionary

import "testing"

func TestDictionaryMapIsStable(t *testing.T) {
	d := New()

	c0 := d.Map("syrup")
	c1 := d.Map("tofu")
	c0again := d.Map("syrup")

	if c0 != 0 || c1 != 1 {
		t.Fatalf("expected codes 0,1 got %d,%d", c0, c1)
	}
	if c0again != c0 {
		t.Fatalf("re-mapping an existing value changed its code: %d != %d", c0again, c0)
	}
	if d.Size() != 2 {
		t.Fatalf("expected size 2, got %d", d.Size())
	}
}

func TestDictionaryReadRoundTrip(t *testing.T) {
	d := New()
	for _, v := range []string{"a", "b", "c"} {
		d.Map(v)
	}

	for c := uint32(0); c < uint32(d.Size()); c++ {
		v, ok := d.Read(c)
		if !ok {
			t.Fatalf("code %d not readable", c)
		}
		pos, ok := d.GetPosition(v)
		if !ok || pos != c {
			t.Fatalf("GetPosition(Read(%d)) = %d, want %d", c, pos, c)
		}
	}
}

func TestDictionaryGetPositionUnknown(t *testing.T) {
	d := New()
	d.Map("known")

	if _, ok := d.GetPosition("unknown"); ok {
		t.Fatal("expected GetPosition of unmapped value to report absent")
	}
}

func TestDictionaryReadOutOfRange(t *testing.T) {
	d := New()
	d.Map("only")

	if _, ok := d.Read(5); ok {
		t.Fatal("expected Read of unassigned code to report absent")
	}
}

func TestProviderCreatesOnFirstTouch(t *testing.T) {
	p := NewProvider()

	if _, ok := p.Lookup("product"); ok {
		t.Fatal("expected no dictionary before first Get")
	}

	d := p.Get("product")
	d.Map("syrup")

	d2, ok := p.Lookup("product")
	if !ok || d2 != d {
		t.Fatal("expected Lookup to return the same dictionary instance created by Get")
	}
}
