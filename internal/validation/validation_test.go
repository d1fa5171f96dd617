package validation

import "testing"

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"valid email", "user@example.com", false},
		{"empty", "", true},
		{"missing at", "userexample.com", true},
		{"missing domain", "user@", true},
		{"whitespace only", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); err == nil {
		t.Error("short password should fail")
	}
	if err := ValidatePassword("long enough password"); err != nil {
		t.Errorf("valid password failed: %v", err)
	}
}

func TestValidateYear(t *testing.T) {
	if err := ValidateYear(nil); err != nil {
		t.Errorf("nil year should be allowed: %v", err)
	}

	good := 1950
	if err := ValidateYear(&good); err != nil {
		t.Errorf("1950 should be valid: %v", err)
	}

	tooOld := 900
	if err := ValidateYear(&tooOld); err == nil {
		t.Error("year 900 should fail")
	}

	future := 3000
	if err := ValidateYear(&future); err == nil {
		t.Error("future year should fail")
	}
}

func TestValidateGeneration(t *testing.T) {
	if err := ValidateGeneration(0); err == nil {
		t.Error("generation 0 should fail")
	}
	if err := ValidateGeneration(1); err != nil {
		t.Errorf("generation 1 should be valid: %v", err)
	}
}

func TestValidateStruct(t *testing.T) {
	type payload struct {
		Email  string `validate:"required,email"`
		Action string `validate:"required,oneof=approve reject"`
	}

	if errs := ValidateStruct(payload{Email: "a@b.com", Action: "approve"}); errs != nil {
		t.Errorf("valid payload should pass, got %v", errs)
	}

	errs := ValidateStruct(payload{Email: "bad", Action: "destroy"})
	if len(errs) != 2 {
		t.Fatalf("expected 2 field errors, got %d: %v", len(errs), errs)
	}
}
