package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"mime"
	"strings"
	"time"
)

// ContentCategory is a coarse content bucket safe to reveal publicly.
type ContentCategory string

const (
	CategoryMedia    ContentCategory = "media"
	CategoryDocument ContentCategory = "document"
	CategoryArchive  ContentCategory = "archive"
	CategoryText     ContentCategory = "text"
	CategoryOther    ContentCategory = "other"
)

// CategorizeContent maps a MIME type to a ContentCategory. Parameters such as
// "; charset=utf-8" are ignored.
func CategorizeContent(mimeType string) ContentCategory {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mimeType))
	}
	switch {
	case strings.HasPrefix(mt, "image/"), strings.HasPrefix(mt, "video/"), strings.HasPrefix(mt, "audio/"):
		return CategoryMedia
	case strings.HasPrefix(mt, "text/"), mt == "application/json", mt == "application/xml":
		return CategoryText
	case strings.HasPrefix(mt, "application/vnd.openxmlformats-officedocument."),
		strings.HasPrefix(mt, "application/vnd.oasis.opendocument."):
		return CategoryDocument
	}

	switch mt {
	case "application/pdf", "application/msword", "application/rtf",
		"application/vnd.ms-excel", "application/vnd.ms-powerpoint":
		return CategoryDocument
	case "application/zip", "application/gzip", "application/x-gzip", "application/x-tar",
		"application/x-7z-compressed", "application/x-rar-compressed", "application/vnd.rar",
		"application/x-bzip2", "application/x-xz":
		return CategoryArchive
	}
	return CategoryOther
}

// KeyDerivation describes how the file key was produced.
type KeyDerivation struct {
	Algorithm  string `json:"algorithm"`
	Iterations int    `json:"iterations"`
}

// ZKFileMetadata is the public description of an encrypted file. It never
// carries the key, a password or the original file name.
type ZKFileMetadata struct {
	Algorithm       string          `json:"algorithm"`
	KeyDerivation   KeyDerivation   `json:"keyDerivation"`
	KeyHint         KeyMode         `json:"keyHint"`
	EncryptedSize   int64           `json:"encryptedSize"`
	UploadTimestamp time.Time       `json:"uploadTimestamp"`
	ContentCategory ContentCategory `json:"contentCategory"`
	IV              []byte          `json:"iv,omitempty"`
	Salt            []byte          `json:"salt,omitempty"`
}

// Value stores the metadata as a JSONB column.
func (m ZKFileMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan reads the metadata from a JSONB column.
func (m *ZKFileMetadata) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = ZKFileMetadata{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	}
	return errors.New("zk metadata: unsupported column type")
}
