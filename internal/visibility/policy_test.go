package visibility

import (
	"testing"

	"github.com/hirelink/realtime-gateway/internal/domain/model"
)

func identity(id int64, roles ...string) model.Identity {
	ident, err := model.NewIdentity(id, roles)
	if err != nil {
		panic(err)
	}
	return ident
}

func TestRevealPrecedence(t *testing.T) {
	const raw = "operator@acme.example"

	tests := []struct {
		name string
		vc   Context
		full bool
	}{
		{"admin sees full", Context{Viewer: identity(9, "ADMIN"), OwnerID: 1}, true},
		{"super admin sees full", Context{Viewer: identity(9, "SUPER_ADMIN"), OwnerID: 1}, true},
		{"owner sees full", Context{Viewer: identity(1, "COMPANY"), OwnerID: 1}, true},
		{"active relation sees full", Context{Viewer: identity(9, "APPLICANT"), OwnerID: 1, ActiveRelation: true}, true},
		{"system call sees full", Context{Viewer: identity(9, "APPLICANT"), OwnerID: 1, SystemCall: true}, true},
		{"stranger sees masked", Context{Viewer: identity(9, "APPLICANT"), OwnerID: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reveal(FieldEmail, raw, tt.vc)
			if tt.full && got != raw {
				t.Errorf("expected full value, got %q", got)
			}
			if !tt.full && got == raw {
				t.Errorf("expected masked value, got full %q", got)
			}
		})
	}
}

func TestRevealDeterministic(t *testing.T) {
	vc := Context{Viewer: identity(9, "APPLICANT"), OwnerID: 1}
	first := Reveal(FieldEmail, "johndoe@example.com", vc)
	for range 10 {
		if got := Reveal(FieldEmail, "johndoe@example.com", vc); got != first {
			t.Fatalf("non-deterministic output: %q then %q", first, got)
		}
	}
}

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"johndoe@example.com", "jo***e@example.com"},
		{"longlocalpart@corp.example", "lo***t@corp.example"},
		{"abcdef@x.io", "ab***f@x.io"},
		// Local part too short to mask without growing the value.
		{"abcde@x.io", "abcde@x.io"},
		{"ab@x.io", "ab@x.io"},
		// No structure to parse: returned unchanged.
		{"not-an-email", "not-an-email"},
		{"@nodomain.example", "@nodomain.example"},
		{"", ""},
	}

	vc := Context{Viewer: identity(9, "APPLICANT"), OwnerID: 1}
	for _, tt := range tests {
		if got := Reveal(FieldEmail, tt.raw, vc); got != tt.want {
			t.Errorf("maskEmail(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestMaskPhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"3001234567", "300*****67"},
		// The plus sign is formatting, not a kept digit.
		{"+5712345678", "+571*****78"},
		{"300 123 4567", "300 *** **67"},
		{"12345", "12345"},
		// Too few digits to safely mask.
		{"1234", "1234"},
		{"+1234", "+1234"},
		{"12", "12"},
		{"", ""},
	}

	vc := Context{Viewer: identity(9, "APPLICANT"), OwnerID: 1}
	for _, tt := range tests {
		if got := Reveal(FieldPhone, tt.raw, vc); got != tt.want {
			t.Errorf("maskPhone(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestMaskTaxID(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"900123456-7", "900123***-*"},
		{"800999111-2", "800999***-*"},
		{"55555", "***-*"},
		{"1234", "1234"},
		{"", ""},
	}

	vc := Context{Viewer: identity(9, "APPLICANT"), OwnerID: 1}
	for _, tt := range tests {
		if got := Reveal(FieldTaxID, tt.raw, vc); got != tt.want {
			t.Errorf("maskTaxID(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

// Masked values must keep the documented visible prefix/suffix verbatim and
// never grow past the original.
func TestMaskNeverGrows(t *testing.T) {
	vc := Context{Viewer: identity(9, "APPLICANT"), OwnerID: 1}

	inputs := map[Field][]string{
		FieldEmail: {"johndoe@example.com", "abcdef@x.io", "ab@x.io", "plain"},
		FieldPhone: {"3001234567", "12345", "1234"},
		FieldTaxID: {"900123456-7", "55555", "1234"},
	}

	for field, values := range inputs {
		for _, raw := range values {
			got := Reveal(field, raw, vc)
			if len(got) > len(raw) {
				t.Errorf("field %d: mask of %q grew to %q", field, raw, got)
			}
		}
	}
}
