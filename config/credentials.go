package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Credentials holds the notification bot token and the target chat.
type Credentials struct {
	BotToken string `json:"bot_http_token"`
	RoomID   string `json:"roomID"`
}

// LoadCredentials reads the credential file. Both fields are required.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigLoadError{Path: path, Err: fmt.Errorf("failed to read credentials file: %w", err)}
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, &ConfigLoadError{Path: path, Err: fmt.Errorf("failed to parse credentials file: %w", err)}
	}

	if creds.BotToken == "" {
		return nil, &ConfigLoadError{Path: path, Err: errors.New("missing key: bot_http_token")}
	}
	if creds.RoomID == "" {
		return nil, &ConfigLoadError{Path: path, Err: errors.New("missing key: roomID")}
	}

	return &creds, nil
}
