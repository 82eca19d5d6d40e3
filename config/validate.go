package config

import (
	"encoding/hex"
	"fmt"
	"net"
	"strings"

	"leasehub/native/rental"
)

// Validate checks the loaded configuration for values the daemon cannot
// start with.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.RPCAddress); err != nil {
		return fmt.Errorf("config: invalid RPCAddress %q: %w", c.RPCAddress, err)
	}
	if c.FeeBps > rental.MaxFeeBps {
		return fmt.Errorf("config: FeeBps %d exceeds maximum %d", c.FeeBps, rental.MaxFeeBps)
	}
	if strings.TrimSpace(c.FeeCollector) != "" {
		if _, err := ParseAddress(c.FeeCollector); err != nil {
			return fmt.Errorf("config: invalid FeeCollector: %w", err)
		}
	}
	return nil
}

// ParseAddress decodes a 20-byte account address from its hex form, with or
// without a 0x prefix.
func ParseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, err
	}
	if len(decoded) != 20 {
		return addr, fmt.Errorf("address must be 20 bytes, got %d", len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}
