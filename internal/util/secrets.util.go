package util

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type DbSecrets struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DbName   string `json:"dbName"`
}

func (d DbSecrets) ToConnectionStr() string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%d dbname=%s",
		d.User, d.Password, d.Host, d.Port, d.DbName,
	)
}

type Secrets struct {
	Db            DbSecrets `json:"db"`
	ChatGPTApiKey string    `json:"chatGptApiKey"`
	JwtSigningKey string    `json:"jwtSigningKey"`
	DataDir       string    `json:"dataDir"`
	OutputDir     string    `json:"outputDir"`
}

// LoadSecrets reads secrets.json, or secrets.<env>.json when BANKIQ_ENV is
// set, from the working directory.
func LoadSecrets() (*Secrets, error) {
	filename := "secrets.json"
	if env := strings.ToLower(os.Getenv("BANKIQ_ENV")); env != "" && env != "prod" {
		filename = fmt.Sprintf("secrets.%s.json", env)
	}

	bytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}

	secrets := Secrets{}
	err = json.Unmarshal(bytes, &secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}

	return &secrets, nil
}
