package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

const testTOTPSecret = "JBSWY3DPEHPK3PXP"

func enableMFA(t *testing.T, f *coreFixture, user *User) *Setting {
	t.Helper()
	secret := testTOTPSecret
	setting, err := f.core.SetSetting(context.Background(), user, SettingInput{
		Name:      SettingNameMfaSecret,
		Value:     &secret,
		Sensitive: true,
	})
	if err != nil {
		t.Fatalf("SetSetting() = %v", err)
	}
	return setting
}

func currentTOTPCode(t *testing.T) string {
	t.Helper()
	code, err := totp.GenerateCode(testTOTPSecret, time.Now())
	if err != nil {
		t.Fatalf("generating code: %v", err)
	}
	return code
}

func TestVerifyMFANotConfigured(t *testing.T) {
	f := newCoreFixture(t, nil)
	f.register("plain@example.com", "correct horse")

	if err := f.core.VerifyMFA(context.Background(), "plain@example.com", nil); err != nil {
		t.Fatalf("VerifyMFA() = %v, want nil without a configured secret", err)
	}
}

func TestVerifyMFARequiredWithoutCode(t *testing.T) {
	f := newCoreFixture(t, nil)
	user := f.register("mfa@example.com", "correct horse")
	setting := enableMFA(t, f, user)

	err := f.core.VerifyMFA(context.Background(), "mfa@example.com", map[string]string{})

	var mfaErr *MFAError
	if !errors.As(err, &mfaErr) {
		t.Fatalf("VerifyMFA() = %v, want *MFAError", err)
	}
	if mfaErr.Tag != MFATagRequired {
		t.Fatalf("tag = %q, want %q", mfaErr.Tag, MFATagRequired)
	}
	if mfaErr.Message != "Please enter your two-factor authentication code." {
		t.Fatalf("unexpected message %q", mfaErr.Message)
	}
	if got := mfaErr.Payload["mfa_key"]; got != "mfa_"+setting.UUID {
		t.Fatalf("payload mfa_key = %q, want mfa_%s", got, setting.UUID)
	}
}

func TestVerifyMFAInvalidCodeEchoesParamKey(t *testing.T) {
	f := newCoreFixture(t, nil)
	user := f.register("mfa@example.com", "correct horse")
	setting := enableMFA(t, f, user)

	paramKey := "mfa_" + setting.UUID
	err := f.core.VerifyMFA(context.Background(), "mfa@example.com", map[string]string{
		paramKey: "000000",
	})

	var mfaErr *MFAError
	if !errors.As(err, &mfaErr) {
		t.Fatalf("VerifyMFA() = %v, want *MFAError", err)
	}
	if mfaErr.Tag != MFATagInvalid {
		t.Fatalf("tag = %q, want %q", mfaErr.Tag, MFATagInvalid)
	}
	if mfaErr.Message != "The two-factor authentication code you entered is incorrect. Please try again." {
		t.Fatalf("unexpected message %q", mfaErr.Message)
	}
	if got := mfaErr.Payload["mfa_key"]; got != paramKey {
		t.Fatalf("payload mfa_key = %q, want %q", got, paramKey)
	}

	event := f.waitForAuditEvent(AuditMFAFailed)
	if event.UserUUID != user.UUID {
		t.Fatalf("audit user %s, want %s", event.UserUUID, user.UUID)
	}
}

func TestVerifyMFAValidCode(t *testing.T) {
	f := newCoreFixture(t, nil)
	user := f.register("mfa@example.com", "correct horse")
	setting := enableMFA(t, f, user)

	err := f.core.VerifyMFA(context.Background(), "mfa@example.com", map[string]string{
		"mfa_" + setting.UUID: currentTOTPCode(t),
	})
	if err != nil {
		t.Fatalf("VerifyMFA() = %v, want nil for a fresh code", err)
	}

	f.waitForAuditEvent(AuditMFASucceeded)
}

func TestVerifyMFAUnknownEmailPseudoAnswer(t *testing.T) {
	f := newCoreFixture(t, nil)

	// The fixture leaves Pseudo.Seed unset, so selection falls back to
	// the JWT secret.
	selector := NewDeterministicSelector([]byte("current-jwt-secret"))

	var required, skipped string
	for i := 0; i < 64 && (required == "" || skipped == ""); i++ {
		email := fmt.Sprintf("ghost%d@example.com", i)
		if selector.Select(email, []bool{true, false}) {
			required = email
		} else {
			skipped = email
		}
	}
	if required == "" || skipped == "" {
		t.Fatal("selector produced only one outcome across 64 emails")
	}

	ctx := context.Background()

	err := f.core.VerifyMFA(ctx, required, nil)
	var mfaErr *MFAError
	if !errors.As(err, &mfaErr) {
		t.Fatalf("VerifyMFA(%q) = %v, want pseudo *MFAError", required, err)
	}
	if mfaErr.Tag != MFATagRequired {
		t.Fatalf("tag = %q, want %q", mfaErr.Tag, MFATagRequired)
	}
	if !strings.HasPrefix(mfaErr.Payload["mfa_key"], "mfa_") {
		t.Fatalf("pseudo param %q lacks the mfa_ prefix", mfaErr.Payload["mfa_key"])
	}

	if err := f.core.VerifyMFA(ctx, skipped, nil); err != nil {
		t.Fatalf("VerifyMFA(%q) = %v, want nil pseudo pass", skipped, err)
	}

	// Repeated probes of the same email must get the same treatment.
	if err := f.core.VerifyMFA(ctx, required, nil); !errors.As(err, &mfaErr) {
		t.Fatalf("second VerifyMFA(%q) = %v, want *MFAError again", required, err)
	}
	if err := f.core.VerifyMFA(ctx, skipped, nil); err != nil {
		t.Fatalf("second VerifyMFA(%q) = %v, want nil again", skipped, err)
	}
}

func TestVerifyMFAPicksFirstParamInSortedOrder(t *testing.T) {
	f := newCoreFixture(t, nil)
	user := f.register("mfa@example.com", "correct horse")
	enableMFA(t, f, user)

	err := f.core.VerifyMFA(context.Background(), "mfa@example.com", map[string]string{
		"mfa_bbb": "111111",
		"mfa_aaa": "000000",
		"other":   "ignored",
	})

	var mfaErr *MFAError
	if !errors.As(err, &mfaErr) {
		t.Fatalf("VerifyMFA() = %v, want *MFAError", err)
	}
	if got := mfaErr.Payload["mfa_key"]; got != "mfa_aaa" {
		t.Fatalf("echoed param = %q, want mfa_aaa", got)
	}
}
