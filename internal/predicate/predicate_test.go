package predicate

import (
	"encoding/json"
	"testing"
)

func TestAppend_DoesNotMutateReceiver(t *testing.T) {
	base := Path{New("core:source", nil)}
	longer := base.Append(New("core:drop", nil))

	if len(base) != 1 {
		t.Errorf("base length changed to %d", len(base))
	}
	if len(longer) != 2 {
		t.Errorf("appended path length = %d, want 2", len(longer))
	}
	if !longer[:1].Equal(base) {
		t.Error("appended path prefix differs from base")
	}
}

func TestAppend_SharedPrefixIsolation(t *testing.T) {
	base := Path{New("core:source", nil)}

	a := base.Append(New("core:drop", nil))
	b := base.Append(New("core:accept", nil))

	if a[1].Variant != "core:drop" {
		t.Errorf("first branch corrupted: %s", a[1].Variant)
	}
	if b[1].Variant != "core:accept" {
		t.Errorf("second branch corrupted: %s", b[1].Variant)
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Predicate
		want bool
	}{
		{
			"identical",
			New("core:protocol_filter", map[string]string{"value": "tcp", "rule": "match"}),
			New("core:protocol_filter", map[string]string{"value": "tcp", "rule": "match"}),
			true,
		},
		{
			"params order independent",
			New("x", map[string]string{"a": "1", "b": "2"}),
			New("x", map[string]string{"b": "2", "a": "1"}),
			true,
		},
		{
			"different variant",
			New("core:drop", nil),
			New("core:accept", nil),
			false,
		},
		{
			"different param value",
			New("x", map[string]string{"a": "1"}),
			New("x", map[string]string{"a": "2"}),
			false,
		},
		{
			"missing param",
			New("x", map[string]string{"a": "1"}),
			New("x", nil),
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew_CopiesParams(t *testing.T) {
	params := map[string]string{"value": "10.0.0.1"}
	p := New("core:source_address_filter", params)

	params["value"] = "mutated"

	if v, _ := p.Param("value"); v != "10.0.0.1" {
		t.Errorf("predicate observed caller mutation: %s", v)
	}
}

func TestFingerprint_ParamsOrderIndependent(t *testing.T) {
	// Build the same logical path with params inserted in different orders.
	a := Path{
		New("core:source", nil),
		{Variant: "core:source_port_filter", Params: map[string]string{"value": "443", "rule": "match"}},
	}
	b := Path{
		New("core:source", nil),
		{Variant: "core:source_port_filter", Params: map[string]string{"rule": "match", "value": "443"}},
	}

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("fingerprints differ for equal paths")
	}
	if Seed(a) != Seed(b) {
		t.Error("seeds differ for equal paths")
	}
}

func TestFingerprint_Distinguishes(t *testing.T) {
	a := Path{New("x", map[string]string{"k": "v"})}
	b := Path{New("x", map[string]string{"k": "w"})}
	c := Path{New("y", map[string]string{"k": "v"})}

	if Fingerprint(a) == Fingerprint(b) {
		t.Error("param value change did not change fingerprint")
	}
	if Fingerprint(a) == Fingerprint(c) {
		t.Error("variant change did not change fingerprint")
	}

	// Key/value boundary: {"ab": "c"} vs {"a": "bc"}
	d := Path{New("x", map[string]string{"ab": "c"})}
	e := Path{New("x", map[string]string{"a": "bc"})}
	if Fingerprint(d) == Fingerprint(e) {
		t.Error("key/value boundary ambiguity in canonical form")
	}
}

func TestShortHash(t *testing.T) {
	p := Path{New("core:source", nil)}
	h := ShortHash(p)
	if len(h) != 8 {
		t.Errorf("ShortHash length = %d, want 8", len(h))
	}
	if h != ShortHash(p.Clone()) {
		t.Error("ShortHash unstable across clones")
	}
}

func TestPredicateJSON(t *testing.T) {
	p := New("geo:country", map[string]string{"iso": "IS"})
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Predicate
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !p.Equal(back) {
		t.Errorf("round trip changed predicate: %+v", back)
	}

	// Empty params must encode as an object, not null, for the plugin protocol.
	empty := New("core:drop", nil)
	data, err = json.Marshal(empty)
	if err != nil {
		t.Fatalf("marshal empty: %v", err)
	}
	if string(data) != `{"variant":"core:drop","params":{}}` {
		t.Errorf("unexpected encoding: %s", data)
	}
}
