package ai

import "testing"

func TestUnmarshalFlexible(t *testing.T) {
	type report struct {
		Summary string `json:"summary"`
		Count   int    `json:"count,omitempty"`
	}

	tests := []struct {
		name  string
		input string
		want  report
	}{
		{
			name:  "valid json object",
			input: `{"summary":"ok"}`,
			want:  report{Summary: "ok"},
		},
		{
			name:  "unquoted key and single quotes",
			input: `{summary: 'ok'}`,
			want:  report{Summary: "ok"},
		},
		{
			name:  "trailing comma",
			input: `{"summary":"ok",}`,
			want:  report{Summary: "ok"},
		},
		{
			name:  "missing endbracket",
			input: `{"summary":"ok`,
			want:  report{Summary: "ok"},
		},
		{
			name:  "stringified invalid json object",
			input: `"{summary: 'ok'}"`,
			want:  report{Summary: "ok"},
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\n  \"summary\": \"ok\"\n}\n",
			want:  report{Summary: "ok"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got report
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("UnmarshalFlexible() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestUnmarshalFlexibleRejectsGarbage(t *testing.T) {
	var out struct {
		Summary string `json:"summary"`
	}
	if err := UnmarshalFlexible("", &out); err == nil {
		t.Error("UnmarshalFlexible(\"\") expected error, got nil")
	}
}

func TestGenerateSchema(t *testing.T) {
	type nested struct {
		Name string `json:"name" jsonschema_description:"entity name"`
	}
	type payload struct {
		Items []nested `json:"items"`
	}

	schema := GenerateSchema(&payload{})
	if schema == nil {
		t.Fatal("GenerateSchema() returned nil")
	}
}
