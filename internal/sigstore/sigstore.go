// Package sigstore archives a master catalog's signatures to a
// directory tree of content-addressed blobs, optionally encrypted at
// rest. It is the export/import path used to move a master catalog
// between machines without a live database connection.
package sigstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/corvid-labs/fuzzysig/internal/catalog"
	fscrypto "github.com/corvid-labs/fuzzysig/internal/crypto"
)

// indexEntry records how to locate and, if encrypted, decrypt one
// archived signature.
type indexEntry struct {
	Name      string `json:"name"`
	Hash      string `json:"hash"`       // sha256 of the plaintext signature, hex
	BlobPath  string `json:"blob_path"`  // path relative to the archive root
	RefCount  int    `json:"ref_count"`  // entries sharing an identical signature
	Encrypted bool   `json:"encrypted"`
	Salt      string `json:"salt,omitempty"` // hex-encoded PBKDF2 salt, present iff Encrypted
}

type index struct {
	Entries map[string]*indexEntry `json:"entries"` // keyed by catalog entry name
}

const blobsDirName = "blobs"
const indexFileName = "index.json"

// Export writes every entry of master to dir as a content-addressed blob
// tree plus an index.json mapping catalog names back to blobs. When
// passphrase is non-empty, each blob is encrypted with AES-256-GCM using
// a key derived from passphrase; identical signatures still dedup by
// plaintext hash since the hash is computed before encryption.
func Export(master catalog.Catalog, dir, passphrase string) error {
	blobsDir := filepath.Join(dir, blobsDirName)
	if err := os.MkdirAll(blobsDir, 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	entries, err := master.Scan()
	if err != nil {
		return fmt.Errorf("scan master catalog: %w", err)
	}

	idx := &index{Entries: make(map[string]*indexEntry, len(entries))}
	written := make(map[string]*indexEntry) // plaintext hash -> the entry that actually wrote its blob

	for _, e := range entries {
		sum := sha256.Sum256([]byte(e.Value))
		hash := hex.EncodeToString(sum[:])

		if first, exists := written[hash]; exists {
			idx.Entries[e.Key] = &indexEntry{
				Name:      e.Key,
				Hash:      hash,
				BlobPath:  first.BlobPath,
				RefCount:  1,
				Encrypted: first.Encrypted,
				Salt:      first.Salt,
			}
			continue
		}

		shardDir := filepath.Join(blobsDir, hash[:2])
		if err := os.MkdirAll(shardDir, 0o755); err != nil {
			return fmt.Errorf("create blob shard %s: %w", hash[:2], err)
		}
		blobPath := filepath.Join(hash[:2], hash)

		payload := []byte(e.Value)
		entry := &indexEntry{Name: e.Key, Hash: hash, BlobPath: blobPath, RefCount: 1}

		if passphrase != "" {
			key, err := fscrypto.DeriveKey(passphrase, nil)
			if err != nil {
				return fmt.Errorf("derive key for %q: %w", e.Key, err)
			}
			payload, err = fscrypto.EncryptBlob(payload, key)
			if err != nil {
				return fmt.Errorf("encrypt signature for %q: %w", e.Key, err)
			}
			entry.Encrypted = true
			entry.Salt = hex.EncodeToString(key.Salt)
		}

		if err := os.WriteFile(filepath.Join(dir, blobsDirName, blobPath), payload, 0o644); err != nil {
			return fmt.Errorf("write blob for %q: %w", e.Key, err)
		}

		written[hash] = entry
		idx.Entries[e.Key] = entry
	}

	refs := make(map[string]int, len(written))
	for _, ie := range idx.Entries {
		refs[ie.Hash]++
	}
	for _, ie := range idx.Entries {
		ie.RefCount = refs[ie.Hash]
	}

	return writeIndex(dir, idx)
}

// Import reads an archive written by Export and returns its entries as a
// name -> signature map, decrypting any encrypted blob with passphrase.
// Import never touches a catalog directly; the caller decides whether
// and how to load the result (e.g. via Catalog.InsertBatch).
func Import(dir, passphrase string) (map[string]string, error) {
	idx, err := readIndex(dir)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(idx.Entries))
	for name, entry := range idx.Entries {
		data, err := os.ReadFile(filepath.Join(dir, blobsDirName, entry.BlobPath))
		if err != nil {
			return nil, fmt.Errorf("read blob for %q: %w", name, err)
		}

		if entry.Encrypted {
			if passphrase == "" {
				return nil, fmt.Errorf("entry %q is encrypted but no passphrase was supplied", name)
			}
			salt, err := hex.DecodeString(entry.Salt)
			if err != nil {
				return nil, fmt.Errorf("decode salt for %q: %w", name, err)
			}
			key, err := fscrypto.DeriveKey(passphrase, salt)
			if err != nil {
				return nil, fmt.Errorf("derive key for %q: %w", name, err)
			}
			data, err = fscrypto.DecryptBlob(data, key)
			if err != nil {
				return nil, fmt.Errorf("decrypt %q: wrong passphrase or corrupt archive: %w", name, err)
			}
		}

		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != entry.Hash {
			return nil, fmt.Errorf("blob for %q failed integrity check", name)
		}

		out[name] = string(data)
	}

	return out, nil
}

func writeIndex(dir string, idx *index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal archive index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, indexFileName), data, 0o644); err != nil {
		return fmt.Errorf("write archive index: %w", err)
	}
	return nil
}

func readIndex(dir string) (*index, error) {
	data, err := os.ReadFile(filepath.Join(dir, indexFileName))
	if err != nil {
		return nil, fmt.Errorf("read archive index: %w", err)
	}
	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse archive index: %w", err)
	}
	return &idx, nil
}
