package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Document is an exported certificate document. In JSON it is a data URI
// string, the form the browser registry stores under pdfData. Plain base64
// strings are accepted on input as well.
type Document []byte

// MarshalJSON encodes d as a base64 data URI
func (d Document) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte(`""`), nil
	}
	mediaType := strings.ReplaceAll(http.DetectContentType(d), " ", "")
	return json.Marshal("data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(d))
}

// UnmarshalJSON decodes a data URI or plain base64 string
func (d *Document) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("document must be a string: %w", err)
	}
	if s == "" {
		*d = nil
		return nil
	}

	payload, isBase64 := s, true
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		header, body, found := strings.Cut(rest, ",")
		if !found {
			return fmt.Errorf("malformed document data URI")
		}
		payload = body
		isBase64 = strings.HasSuffix(header, ";base64")
	}

	if !isBase64 {
		raw, err := url.PathUnescape(payload)
		if err != nil {
			return fmt.Errorf("failed to decode document: %w", err)
		}
		*d = Document(raw)
		return nil
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	*d = raw
	return nil
}
