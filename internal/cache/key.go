package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ChatKey derives a stable cache key from the chat message and retrieval
// depth. Hashing keeps arbitrary user text out of Redis key space.
func ChatKey(message string, topK int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%d\x00%s", topK, message))
	return hex.EncodeToString(sum[:])
}
