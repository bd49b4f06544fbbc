package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// UpdateKey identifies one chat message. Telegram redelivers an update with
// the same chat and message id.
func UpdateKey(chatID string, messageID int) string {
	sum := sha256.Sum256([]byte(chatID + ":" + strconv.Itoa(messageID)))
	return hex.EncodeToString(sum[:])
}
