package cmd

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/queue"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/store"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/syncclient"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/syncconfig"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/synccrypto"
	"github.com/AuraTechWave/auraconnectai-sub011/internal/syncengine"
)

// openStore opens the local database in the base directory.
func openStore() (*store.Store, error) {
	s, err := store.Open(getBaseDir())
	if err != nil {
		return nil, fmt.Errorf("open store: %w (run: aurasync init)", err)
	}
	return s, nil
}

// newQueue builds the mutation queue on top of the store's connection,
// wiring the configured capacity, retry cap, and payload cipher.
func newQueue(s *store.Store) (*queue.Queue, error) {
	cipher, err := queueCipher()
	if err != nil {
		return nil, err
	}
	cfg := queue.Config{
		MaxSize:    syncconfig.GetMaxQueueSize(),
		MaxRetries: syncconfig.GetMaxRetryCount(),
	}
	return queue.New(s.Conn(), cipher, cfg), nil
}

// queueCipher derives the at-rest cipher for sensitive queue payloads.
// Encryption is opt-in: it requires encrypt_queue in the config and a
// passphrase in AURASYNC_QUEUE_KEY. The Argon2id salt is persisted with
// the auth credentials so the key is stable across runs.
func queueCipher() (synccrypto.Cipher, error) {
	cfg, err := syncconfig.LoadConfig()
	if err != nil || !cfg.Sync.EncryptQueue {
		return synccrypto.NopCipher{}, nil
	}
	passphrase := os.Getenv("AURASYNC_QUEUE_KEY")
	if passphrase == "" {
		return nil, fmt.Errorf("encrypt_queue is enabled but AURASYNC_QUEUE_KEY is not set")
	}

	creds, err := syncconfig.LoadAuth()
	if err != nil {
		creds = &syncconfig.AuthCredentials{}
	}
	if creds.KeySalt == "" {
		key, salt, err := synccrypto.DeriveKey(passphrase)
		if err != nil {
			return nil, fmt.Errorf("derive queue key: %w", err)
		}
		creds.KeySalt = hex.EncodeToString(salt)
		if err := syncconfig.SaveAuth(creds); err != nil {
			return nil, fmt.Errorf("persist key salt: %w", err)
		}
		return synccrypto.NewAESCipher(key)
	}

	salt, err := hex.DecodeString(creds.KeySalt)
	if err != nil {
		return nil, fmt.Errorf("decode key salt: %w", err)
	}
	key, err := synccrypto.DeriveKeyWithSalt(passphrase, salt)
	if err != nil {
		return nil, fmt.Errorf("derive queue key: %w", err)
	}
	return synccrypto.NewAESCipher(key)
}

// newClient builds a sync client from the stored credentials.
func newClient() (*syncclient.Client, error) {
	deviceID, err := syncconfig.GetDeviceID()
	if err != nil {
		return nil, fmt.Errorf("get device id: %w", err)
	}
	return syncclient.New(syncconfig.GetServerURL(), syncconfig.GetAPIKey(), deviceID), nil
}

// newEngine wires store, queue, and client into a sync engine.
func newEngine(s *store.Store, q *queue.Queue, c *syncclient.Client) *syncengine.Engine {
	cfg := syncengine.DefaultConfig()
	cfg.BatchSize = syncconfig.GetBatchSize()
	return syncengine.New(s, q, c, cfg)
}
