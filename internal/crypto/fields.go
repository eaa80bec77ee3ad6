package crypto

import (
	"encoding/json"

	dErrors "werkstattguard/pkg/domain-errors"
)

// SensitiveFields is the fixed allow-list of workshop record fields that are
// protected at rest. Fields absent from a record are left untouched.
var SensitiveFields = []string{
	"owner_email",
	"phone",
	"address",
	"tax_id",
	"bank_details",
}

// MarkerSuffix tags a sibling boolean field indicating a value is stored
// encrypted and decryption should be attempted on read.
const MarkerSuffix = "_encrypted"

// EncryptRecord returns a copy of the record where every present sensitive
// field is replaced with its envelope and a `<field>_encrypted = true` marker
// is set. Non-string sensitive values are rejected rather than silently
// stringified.
func (m *Manager) EncryptRecord(record map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(record))
	for k, v := range record {
		out[k] = v
	}

	for _, field := range SensitiveFields {
		raw, ok := out[field]
		if !ok {
			continue
		}
		plaintext, ok := raw.(string)
		if !ok {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "sensitive field "+field+" must be a string")
		}

		env, err := m.Encrypt(plaintext)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeCryptoFailure, "failed to encrypt field "+field)
		}
		out[field] = env
		out[field+MarkerSuffix] = true
	}
	return out, nil
}

// DecryptRecord returns a copy of the record where every field whose marker
// is true has been decrypted and its marker dropped. A field that fails to
// decrypt is logged and left in its encrypted form; one bad field must not
// block access to the rest of the record.
func (m *Manager) DecryptRecord(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		out[k] = v
	}

	for _, field := range SensitiveFields {
		marker, ok := out[field+MarkerSuffix].(bool)
		if !ok || !marker {
			continue
		}

		env, err := toEnvelope(out[field])
		if err == nil {
			var plaintext string
			plaintext, err = m.Decrypt(env)
			if err == nil {
				out[field] = plaintext
				delete(out, field+MarkerSuffix)
				continue
			}
		}

		if m.logger != nil {
			m.logger.Error("failed to decrypt field, leaving encrypted",
				"field", field,
				"error", err,
			)
		}
	}
	return out
}

// toEnvelope coerces an in-memory *Envelope or a JSON-decoded map back into
// an Envelope. Records round-trip through the datastore as generic maps.
func toEnvelope(v any) (*Envelope, error) {
	switch e := v.(type) {
	case *Envelope:
		return e, nil
	case Envelope:
		return &e, nil
	case map[string]any:
		raw, err := json.Marshal(e)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeCryptoFailure, "malformed envelope")
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeCryptoFailure, "malformed envelope")
		}
		return &env, nil
	default:
		return nil, dErrors.New(dErrors.CodeCryptoFailure, "value is not an encryption envelope")
	}
}
