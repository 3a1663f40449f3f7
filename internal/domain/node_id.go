package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatNodeNum renders a 32-bit node number the way node ids are keyed
// throughout the gateway: 8 lowercase hex digits, no "!" prefix.
func FormatNodeNum(num uint32) string {
	return fmt.Sprintf("%08x", num)
}

// NormalizeNodeID accepts "!1234ABCD", "1234abcd" or padded variants and
// returns the canonical 8-digit lowercase form. It returns "" for ids that are
// not valid 32-bit hex numbers or are the broadcast placeholder.
func NormalizeNodeID(raw string) string {
	v := strings.TrimPrefix(strings.TrimSpace(raw), "!")
	if v == "" || len(v) > 8 {
		return ""
	}
	num, err := strconv.ParseUint(v, 16, 32)
	if err != nil || num == 0xffffffff {
		return ""
	}

	return FormatNodeNum(uint32(num))
}
