package gateway

import (
	"encoding/base64"
	"strings"
	"unicode"
)

// minImageLength is the shortest image payload worth sending to the model.
const minImageLength = 100

const defaultImageMIME = "image/jpeg"

// decodeImage accepts raw base64 or a data URL and returns the image bytes
// with their MIME type.
func decodeImage(payload string) (*Image, bool) {
	mime := defaultImageMIME
	data := payload

	if idx := strings.Index(payload, ","); idx >= 0 {
		header := payload[:idx]
		data = payload[idx+1:]
		if strings.HasPrefix(header, "data:") {
			if m := strings.TrimPrefix(strings.SplitN(header, ";", 2)[0], "data:"); strings.HasPrefix(m, "image/") {
				mime = m
			}
		}
	}

	data = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, data)
	if data == "" {
		return nil, false
	}

	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return nil, false
		}
	}
	if len(decoded) == 0 {
		return nil, false
	}

	return &Image{MIMEType: mime, Data: decoded}, true
}
