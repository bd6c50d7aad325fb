package languages

import (
	"encoding/json"
	"testing"
)

func TestJSONShape(t *testing.T) {
	raw, err := JSON()
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	var out []map[string]string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != len(All()) {
		t.Fatalf("expected %d languages, got %d", len(All()), len(out))
	}
	first := out[0]
	if first["code"] != "ar" || first["name"] != "Arabic" || first["flag"] == "" {
		t.Fatalf("unexpected first entry %v", first)
	}
}

func TestLookupAndName(t *testing.T) {
	if l, ok := Lookup("ur"); !ok || l.Name != "Urdu" {
		t.Fatalf("expected Urdu, got %v %v", l, ok)
	}
	if Name("xx") != "xx" {
		t.Fatalf("unknown code should echo back")
	}
}

func TestAllReturnsCopy(t *testing.T) {
	list := All()
	list[0].Name = "changed"
	if All()[0].Name != "Arabic" {
		t.Fatalf("All must not expose internal slice")
	}
}
