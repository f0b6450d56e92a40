package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SecretsDir - стандартный путь Docker Secrets. Переменная, чтобы тесты могли подменить каталог.
var SecretsDir = "/run/secrets"

// ErrSecretNotFound возвращается, если секрета нет ни в файле, ни в окружении.
var ErrSecretNotFound = errors.New("secret not found")

// ReadSecret читает секрет из файла в каталоге Docker Secrets.
func ReadSecret(secretName string) (string, error) {
	filePath := filepath.Join(SecretsDir, secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", filePath)
	}
	return secret, nil
}

// LookupSecret сначала ищет файл секрета, затем переменную окружения envKey.
// Для локального запуска без Docker этого достаточно.
func LookupSecret(secretName, envKey string) (string, error) {
	if secret, err := ReadSecret(secretName); err == nil {
		return secret, nil
	}
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s (file %s or env %s)", ErrSecretNotFound, secretName, filepath.Join(SecretsDir, secretName), envKey)
}
