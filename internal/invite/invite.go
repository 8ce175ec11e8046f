// Package invite builds claim tokens and the links that carry them.
package invite

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

// QRSize is the edge length in pixels of generated QR codes.
const QRSize = 256

// NewToken returns a random 32-character hex claim token.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Link appends the claim token to the bot entry point as a start payload.
func Link(base, token string) string {
	return strings.TrimRight(base, "/?") + "?start=" + url.QueryEscape(token)
}

// BaseFromUsername returns the public entry point of a bot.
func BaseFromUsername(username string) string {
	return "https://t.me/" + strings.TrimPrefix(username, "@")
}

// QR renders link as a PNG QR code.
func QR(link string) ([]byte, error) {
	png, err := qrcode.Encode(link, qrcode.Medium, QRSize)
	if err != nil {
		return nil, fmt.Errorf("invite: qr: %w", err)
	}
	return png, nil
}
