// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"filippo.io/age"
	"gopkg.in/yaml.v3"
)

// APICredentials are the third-party API settings the coordinator
// reads from its configuration document. They are stored on disk as an
// age-encrypted YAML file and only decrypted when a run starts.
type APICredentials struct {
	ConsumerToken  string `toml:"consumer_token" yaml:"consumer_token"`
	ConsumerSecret string `toml:"consumer_secret" yaml:"consumer_secret"`
}

// DefaultAPICredentials are placeholders accepted by coordinators that
// never call the API (every test setup).
func DefaultAPICredentials() APICredentials {
	return APICredentials{
		ConsumerToken:  "some_token",
		ConsumerSecret: "some_secret",
	}
}

// SealCredentials encrypts credentials to every recipient (age1...
// public keys).
func SealCredentials(credentials APICredentials, recipientKeys []string) ([]byte, error) {
	if len(recipientKeys) == 0 {
		return nil, errors.New("at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	plaintext, err := yaml.Marshal(credentials)
	if err != nil {
		return nil, fmt.Errorf("encoding credentials: %w", err)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	return ciphertext.Bytes(), nil
}

// LoadCredentials decrypts the sealed credentials file at path with
// the age identities in identityPath.
func LoadCredentials(path, identityPath string) (*APICredentials, error) {
	identityFile, err := os.Open(identityPath)
	if err != nil {
		return nil, fmt.Errorf("opening identity file: %w", err)
	}
	defer identityFile.Close()
	identities, err := age.ParseIdentities(identityFile)
	if err != nil {
		return nil, fmt.Errorf("parsing identity file %s: %w", identityPath, err)
	}

	sealed, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening credentials file: %w", err)
	}
	defer sealed.Close()

	reader, err := age.Decrypt(sealed, identities...)
	if err != nil {
		return nil, fmt.Errorf("decrypting %s: %w", path, err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted credentials: %w", err)
	}

	var credentials APICredentials
	decoder := yaml.NewDecoder(bytes.NewReader(plaintext))
	decoder.KnownFields(true)
	if err := decoder.Decode(&credentials); err != nil {
		return nil, fmt.Errorf("parsing credentials %s: %w", path, err)
	}
	if credentials.ConsumerToken == "" || credentials.ConsumerSecret == "" {
		return nil, fmt.Errorf("credentials %s: consumer_token and consumer_secret are required", path)
	}
	return &credentials, nil
}
