package registry

import (
	"encoding/json"
	"testing"
)

func TestNullString_Unmarshal(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		wantValue string
	}{
		{"string", `"Acme"`, true, "Acme"},
		{"empty string", `""`, true, ""},
		{"null", `null`, false, ""},
		{"number", `12345`, true, "12345"},
		{"negative float", `-1.5`, true, "-1.5"},
		{"bool", `true`, true, "true"},
		{"object", `{"a":1}`, false, ""},
		{"array", `["a"]`, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s NullString
			if err := json.Unmarshal([]byte(tt.input), &s); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if s.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", s.Valid, tt.wantValid)
			}
			if s.String != tt.wantValue {
				t.Errorf("String = %q, want %q", s.String, tt.wantValue)
			}
		})
	}
}

func TestNullString_Marshal(t *testing.T) {
	tests := []struct {
		name string
		in   NullString
		want string
	}{
		{"unset", NullString{}, `null`},
		{"set", StringOf("Raipur"), `"Raipur"`},
		{"unicode", StringOf("बेंगलुरु"), `"बेंगलुरु"`},
		{"no html escape", StringOf("R&D <labs>"), `"R&D <labs>"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.MarshalJSON()
			if err != nil {
				t.Fatalf("MarshalJSON() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("MarshalJSON() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNullString_Present(t *testing.T) {
	if (NullString{}).Present() {
		t.Error("unset value should not be present")
	}
	if StringOf("   ").Present() {
		t.Error("blank value should not be present")
	}
	if !StringOf("x").Present() {
		t.Error("non-blank value should be present")
	}
}

func TestNullBool_Unmarshal(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
		wantValue bool
	}{
		{`true`, true, true},
		{`false`, true, false},
		{`"true"`, true, true},
		{`"false"`, true, false},
		{`null`, false, false},
		{`"yes"`, false, false},
		{`1.5`, false, false},
		{`{}`, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var b NullBool
			if err := json.Unmarshal([]byte(tt.input), &b); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if b.Valid != tt.wantValid || b.Bool != tt.wantValue {
				t.Errorf("NullBool = %+v, want {Bool:%v Valid:%v}", b, tt.wantValue, tt.wantValid)
			}
		})
	}
}

func TestNested_Unmarshal(t *testing.T) {
	type holder struct {
		State Nested[StateRef] `json:"state"`
	}

	tests := []struct {
		name      string
		input     string
		wantValid bool
		wantName  string
	}{
		{"object", `{"state":{"stateName":"Goa"}}`, true, "Goa"},
		{"null", `{"state":null}`, false, ""},
		{"missing", `{}`, false, ""},
		{"string", `{"state":"Goa"}`, false, ""},
		{"array", `{"state":[1,2]}`, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h holder
			if err := json.Unmarshal([]byte(tt.input), &h); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if h.State.Valid() != tt.wantValid {
				t.Errorf("Valid() = %v, want %v", h.State.Valid(), tt.wantValid)
			}
			if got := h.State.Value().StateName.String; got != tt.wantName {
				t.Errorf("StateName = %q, want %q", got, tt.wantName)
			}
		})
	}
}

func TestList_Unmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"strings", `["a","b"]`, []string{"a", "b"}},
		{"nulls dropped", `["a",null,"b"]`, []string{"a", "b"}},
		{"bad elements dropped", `["a",1,{"x":1},"b"]`, []string{"a", "b"}},
		{"null", `null`, []string{}},
		{"object", `{"a":"b"}`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l List[string]
			if err := json.Unmarshal([]byte(tt.input), &l); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if l == nil {
				t.Fatal("List should never decode to nil")
			}
			if len(l) != len(tt.want) {
				t.Fatalf("len = %d, want %d (%v)", len(l), len(tt.want), l)
			}
			for i := range tt.want {
				if l[i] != tt.want[i] {
					t.Errorf("l[%d] = %q, want %q", i, l[i], tt.want[i])
				}
			}
		})
	}
}
