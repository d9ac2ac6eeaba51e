// Package qrtoken encodes check-in tokens for out-of-band presentation.
//
// A participant displays the encoded token (typically as a QR code);
// an administrator decodes it and runs the preview/decide actions. The
// token binds a confirmation request to its mass so a request cannot
// be replayed against a different celebration.
package qrtoken

import (
	"encoding/base64"
	"encoding/json"

	"github.com/migueww/acolitapp/internal/app/system/apperr"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// payloadType identifies mass check-in tokens among other encoded
// payloads a client may present.
const payloadType = "mass_checkin"

type payload struct {
	Type      string `json:"type"`
	MassID    string `json:"mass_id"`
	RequestID string `json:"request_id"`
}

// Encode produces the opaque token for a confirmation request.
func Encode(massID primitive.ObjectID, requestID string) string {
	raw, _ := json.Marshal(payload{
		Type:      payloadType,
		MassID:    massID.Hex(),
		RequestID: requestID,
	})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode parses a token and returns the mass id and request id it
// binds. Callers must still verify the mass id matches the mass being
// administered.
func Decode(token string) (primitive.ObjectID, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return primitive.NilObjectID, "", apperr.Validation("malformed check-in token")
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return primitive.NilObjectID, "", apperr.Validation("malformed check-in token")
	}
	if p.Type != payloadType {
		return primitive.NilObjectID, "", apperr.Validation("not a mass check-in token")
	}
	massID, err := primitive.ObjectIDFromHex(p.MassID)
	if err != nil {
		return primitive.NilObjectID, "", apperr.Validation("malformed check-in token")
	}
	if p.RequestID == "" {
		return primitive.NilObjectID, "", apperr.Validation("malformed check-in token")
	}
	return massID, p.RequestID, nil
}
