package document

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

const faviconPrefix = "data:image/png;base64,"

func decodeFavicon(raw string, retainBytes bool) (*Favicon, error) {
	payload := strings.TrimPrefix(raw, faviconPrefix)
	if payload == raw {
		return nil, fmt.Errorf("document: favicon missing expected data-url prefix")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("document: favicon base64 decode: %w", err)
	}
	fav := &Favicon{Hash: sha256.Sum256(data)}
	if retainBytes {
		fav.Bytes = data
	}
	return fav, nil
}
