package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/Norgate-AV/kbfw/internal/fsio"
)

// keyLength is the number of hex characters kept from the digest.
const keyLength = 16

// CacheKey derives the stable identifier of a (repository, branch, tier)
// entry. The repo tier is shared across branches, so its branch is ignored.
func CacheKey(repository, branch string, tier Tier) string {
	if tier == TierRepo {
		branch = ""
	}

	sum := sha256.Sum256([]byte(repository + "|" + branch + "|" + string(tier)))

	return hex.EncodeToString(sum[:])[:keyLength]
}

// BuildBranch scopes a branch to a specific pair of build inputs. Build tier
// entries are keyed by it so each keymap/config pair gets its own entry.
func BuildBranch(branch, keymapHash, configHash string) string {
	sum := sha256.Sum256([]byte(keymapHash + "|" + configHash))

	return branch + "@" + hex.EncodeToString(sum[:])[:12]
}

// HashFile returns the hex SHA-256 of a file's content.
func HashFile(fs fsio.FileAdapter, path string) (string, error) {
	data, err := fs.ReadBinary(path)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:]), nil
}
