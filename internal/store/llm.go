package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// LLMExchange represents a prompt/response pair captured for debugging.
type LLMExchange struct {
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
}

// SaveLLMExchange serializes an LLM exchange to JSON and writes it to a
// timestamped file under dir/llm/. Returns the path to the saved file.
func SaveLLMExchange(dir string, exchange LLMExchange) (string, error) {
	llmDir := filepath.Join(dir, "llm")
	if err := os.MkdirAll(llmDir, 0755); err != nil {
		return "", err
	}

	// Dashes instead of colons for filesystem compatibility.
	filename := exchange.Timestamp.Format("2006-01-02T15-04-05.000") + ".json"
	path := filepath.Join(llmDir, filename)

	data, err := json.MarshalIndent(exchange, "", "  ")
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}

	return path, nil
}
