package transport

import (
	"fmt"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Pure encoders turning a pairing code into its deliverable forms. The
// code is the only secret any of these may carry: pair URLs transit SMS
// (an unencrypted channel) and printed QR codes, so no tenant identifier
// or session material ever goes in.

const DefaultQRSize = 256

// PairURL builds the deterministic confirmation link the device opens.
func PairURL(baseURL, code string) string {
	return fmt.Sprintf("%s/pair/confirm?code=%s",
		strings.TrimRight(baseURL, "/"), url.QueryEscape(code))
}

// SMSBody formats the text message wrapping the pair URL.
func SMSBody(baseURL, code string) string {
	return fmt.Sprintf("Tap to pair your device: %s (this link expires in a few minutes)", PairURL(baseURL, code))
}

// QRPNG renders the pair URL as a PNG image of size x size pixels.
func QRPNG(baseURL, code string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(PairURL(baseURL, code), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
