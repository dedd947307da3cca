package service

import "testing"

func TestGeneratePasscode(t *testing.T) {
	plain, passcode, err := GeneratePasscode()
	if err != nil {
		t.Fatalf("GeneratePasscode: %v", err)
	}
	if len(plain) != 12 {
		t.Errorf("unexpected passcode length: %d", len(plain))
	}
	if !passcode.Check(plain) {
		t.Error("generated passcode must verify against itself")
	}
	if passcode.Check(plain + "x") {
		t.Error("wrong passcode must not verify")
	}
	if passcode.Check("") {
		t.Error("empty passcode must not verify")
	}
}

func TestGeneratedPasscodesDiffer(t *testing.T) {
	a, _, err := GeneratePasscode()
	if err != nil {
		t.Fatalf("GeneratePasscode: %v", err)
	}
	b, _, err := GeneratePasscode()
	if err != nil {
		t.Fatalf("GeneratePasscode: %v", err)
	}
	if a == b {
		t.Error("two generated passcodes should not collide")
	}
}
