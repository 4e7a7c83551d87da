package verdict

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// QR payloads are base64 of "productID|serialNumber". The payload arrives
// already decrypted — key management belongs to the QR issuance service,
// not this core.

var errEmptyPayload = errors.New("empty payload")

// EncodeQR builds the wire form of a QR payload. Used by the seeder and
// by tests; issuance in production happens elsewhere.
func EncodeQR(productID, serial string) string {
	return base64.StdEncoding.EncodeToString([]byte(productID + "|" + serial))
}

// DecodeQR parses a QR payload into its product ID and serial number.
func DecodeQR(payload string) (productID, serial string, err error) {
	if payload == "" {
		return "", "", errEmptyPayload
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", "", fmt.Errorf("not valid base64: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", errors.New("malformed payload structure")
	}
	return parts[0], parts[1], nil
}
