package remote

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var mimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

func mimeType(path string) string {
	if m, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}
	return "image/jpeg"
}

// encodeDataURL reads the file into a data URL suitable for inline transport.
func encodeDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("error reading image for upload: %w", err)
	}

	return "data:" + mimeType(path) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// decodeDataURL returns the payload of a base64 data URL.
func decodeDataURL(ref string) ([]byte, error) {
	_, encoded, ok := strings.Cut(ref, ",")
	if !ok {
		return nil, fmt.Errorf("malformed inline image reference")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("error decoding inline image: %w", err)
	}

	return data, nil
}

// imageRef extracts a reference from a result entry, which is either a string or an object whose
// url field is a string or a list of strings.
func imageRef(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var obj struct {
		URL json.RawMessage `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("unknown image entry: %s", string(raw))
	}

	if err := json.Unmarshal(obj.URL, &s); err == nil {
		return s, nil
	}

	var list []string
	if err := json.Unmarshal(obj.URL, &list); err == nil && len(list) > 0 {
		return list[0], nil
	}

	return "", fmt.Errorf("unknown image url: %s", string(obj.URL))
}

// writeAtomic writes data to a sibling temp file and renames it over dest.
func writeAtomic(dest string, data []byte) error {
	tmp := dest + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, dest)
}
