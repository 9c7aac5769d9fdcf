package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"ryxel/internal/model"
)

// VerifyEvent checks the webhook payload against its HMAC-SHA256
// signature and decodes it. The signature is hex-encoded over the raw
// payload bytes with the shared webhook secret. Any verification
// failure returns model.ErrInvalidSignature and no event.
func VerifyEvent(payload []byte, signature, secret string) (*Event, error) {
	if signature == "" {
		return nil, model.ErrInvalidSignature
	}

	expected := Sign(payload, secret)
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return nil, model.ErrInvalidSignature
	}

	expectedRaw, _ := hex.DecodeString(expected)
	if !hmac.Equal(expectedRaw, provided) {
		return nil, model.ErrInvalidSignature
	}

	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode webhook event: %w", err)
	}

	return &ev, nil
}

// Sign computes the hex-encoded HMAC-SHA256 signature of payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
