package authcore

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
)

// MFA failure tags carried by [MFAError].
const (
	MFATagRequired = "mfa-required"
	MFATagInvalid  = "mfa-invalid"
)

const (
	mfaParamPrefix     = "mfa_"
	mfaPayloadKey      = "mfa_key"
	mfaRequiredMessage = "Please enter your two-factor authentication code."
	mfaInvalidMessage  = "The two-factor authentication code you entered is incorrect. Please try again."
)

// MFAError is the structured outcome of a failed MFA verification. The
// payload tells the client which request parameter to supply the code
// under.
type MFAError struct {
	Tag     string
	Message string
	Payload map[string]string
}

func (e *MFAError) Error() string {
	return e.Message
}

// BooleanSelector deterministically picks one of the offered options for
// a subject. The core uses it to decide whether an unknown email
// pretends to have MFA enabled, so repeated probes get a stable answer.
type BooleanSelector interface {
	Select(subject string, options []bool) bool
}

// DeterministicSelector keys its choice on an HMAC of the subject.
type DeterministicSelector struct {
	seed []byte
}

// NewDeterministicSelector creates a selector keyed by seed.
func NewDeterministicSelector(seed []byte) *DeterministicSelector {
	key := make([]byte, len(seed))
	copy(key, seed)
	return &DeterministicSelector{seed: key}
}

// Select returns the option indexed by the subject's HMAC.
func (s *DeterministicSelector) Select(subject string, options []bool) bool {
	if len(options) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, s.seed)
	mac.Write([]byte(subject))
	sum := mac.Sum(nil)
	return options[int(sum[0])%len(options)]
}

// VerifyMFA checks the second factor for a sign-in attempt. A nil return
// means the attempt may proceed: either the code verified, or the
// account has no MFA configured. Failures are always *[MFAError].
//
// Unknown emails get a deterministic pseudo answer so that the MFA
// endpoint cannot be used to probe which accounts exist: some emails are
// told a code is required (with a throwaway parameter name), others pass
// straight through, and the same email always gets the same treatment.
func (c *Core) VerifyMFA(ctx context.Context, email string, requestParams map[string]string) error {
	user, err := c.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	if user == nil {
		if c.selector.Select(email, []bool{true, false}) {
			c.metrics.observeMFA("pseudo_required")
			return &MFAError{
				Tag:     MFATagRequired,
				Message: mfaRequiredMessage,
				Payload: map[string]string{mfaPayloadKey: mfaParamPrefix + uuid.NewString()},
			}
		}
		c.metrics.observeMFA("pseudo_skipped")
		return nil
	}

	setting, err := c.settings.FindOneByNameAndUserUUID(ctx, SettingNameMfaSecret, user.UUID)
	if err != nil {
		return err
	}
	if setting == nil || setting.Value == nil {
		c.metrics.observeMFA("not_configured")
		return nil
	}

	paramKey, code := findMFAParam(requestParams)
	if paramKey == "" {
		c.metrics.observeMFA("required")
		return &MFAError{
			Tag:     MFATagRequired,
			Message: mfaRequiredMessage,
			Payload: map[string]string{mfaPayloadKey: mfaParamPrefix + setting.UUID},
		}
	}

	secret, err := c.settingPlaintext(user, setting)
	if err != nil {
		return fmt.Errorf("decrypt mfa secret: %w", err)
	}

	if !totp.Validate(code, secret) {
		event := newAuditEvent(AuditMFAFailed)
		event.UserUUID = user.UUID
		event.Email = email
		c.emit(ctx, event)
		c.metrics.observeMFA("invalid")
		c.logger.WarnContext(ctx, "mfa verification failed",
			slog.String("user_uuid", user.UUID))

		return &MFAError{
			Tag:     MFATagInvalid,
			Message: mfaInvalidMessage,
			Payload: map[string]string{mfaPayloadKey: paramKey},
		}
	}

	event := newAuditEvent(AuditMFASucceeded)
	event.UserUUID = user.UUID
	event.Email = email
	event.Success = true
	c.emit(ctx, event)
	c.metrics.observeMFA("valid")
	return nil
}

// findMFAParam returns the first request parameter whose key carries the
// MFA prefix. Keys are scanned in sorted order so the choice is stable.
func findMFAParam(params map[string]string) (string, string) {
	keys := make([]string, 0, len(params))
	for key := range params {
		if strings.HasPrefix(key, mfaParamPrefix) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return "", ""
	}
	sort.Strings(keys)
	return keys[0], params[keys[0]]
}
