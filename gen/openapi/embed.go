// Package openapi встраивает OpenAPI документ HTTP API планировщика.
package openapi

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed api.swagger.json
var document []byte

// Spec возвращает документ с info.version, равной version. Пустая version
// оставляет значение из файла.
func Spec(version string) ([]byte, error) {
	if version == "" {
		return document, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(document, &doc); err != nil {
		return nil, fmt.Errorf("embedded OpenAPI document is malformed: %w", err)
	}
	info, ok := doc["info"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("embedded OpenAPI document has no info section")
	}
	info["version"] = version
	return json.Marshal(doc)
}
