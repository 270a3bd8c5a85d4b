package model

import (
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/google/uuid"
)

func CreateID() string {
	uuid, _ := uuid.NewRandom()
	return base58.Encode(uuid[:])
}

// ToChatID converts an E.164 phone number to the chat network's id form,
// e.g. "+44 7911 123456" -> "447911123456@c.us".
func ToChatID(e164 string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, e164)
	return digits + "@c.us"
}

// FromNumber extracts the E.164 form from a chat id like "447911123456@c.us".
func FromNumber(chatID string) string {
	if i := strings.IndexByte(chatID, '@'); i >= 0 {
		chatID = chatID[:i]
	}
	return "+" + chatID
}
