//go:build !linux

package tundev

import (
	"errors"
	"net/netip"

	"github.com/songgao/water"
	"go.uber.org/zap"
)

func platformSpecificParams(name string) water.PlatformSpecificParams {
	return water.PlatformSpecificParams{}
}

func configureLink(logger *zap.Logger, name string, mtu int, prefixes []netip.Prefix) error {
	for _, prefix := range prefixes {
		logger.Warn("Failed to assign device address",
			zap.String("device", name),
			zap.Stringer("prefix", prefix),
			zap.Error(errors.ErrUnsupported),
		)
	}
	return nil
}
