package rfid

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidTag = errors.New("invalid tag identifier")

// 4 byte tag UID
type Tag [4]byte

// Reported by some readers when no card is actually present
var GhostTag = Tag{0x20, 0x20, 0x20, 0x20}

func (t Tag) IsGhost() bool {
	return t == GhostTag
}

func (t Tag) String() string {
	return strings.ToUpper(hex.EncodeToString(t[:]))
}

// ParseTag accepts hex with optional ':', '-' or ' ' separators
func ParseTag(s string) (Tag, error) {
	var tag Tag
	cleaned := strings.NewReplacer(":", "", "-", "", " ", "").Replace(strings.TrimSpace(s))
	cleaned = strings.TrimPrefix(strings.TrimPrefix(cleaned, "0x"), "0X")
	if len(cleaned) != 2*len(tag) {
		return tag, fmt.Errorf("%w : %q", ErrInvalidTag, s)
	}
	_, err := hex.Decode(tag[:], []byte(cleaned))
	if err != nil {
		return tag, fmt.Errorf("%w : %v", ErrInvalidTag, err)
	}
	return tag, nil
}

func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tag) UnmarshalText(text []byte) error {
	tag, err := ParseTag(string(text))
	if err != nil {
		return err
	}
	*t = tag
	return nil
}
