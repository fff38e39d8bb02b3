package tundev

import (
	"fmt"
	"net/netip"

	"github.com/songgao/water"
	"github.com/vishvananda/netlink"
	"go.uber.org/zap"
)

func platformSpecificParams(name string) water.PlatformSpecificParams {
	return water.PlatformSpecificParams{
		Name: name,
	}
}

// configureLink sets the MTU, brings the link up and assigns the prefixes.
func configureLink(logger *zap.Logger, name string, mtu int, prefixes []netip.Prefix) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("failed to find link %s: %w", name, err)
	}

	if mtu > 0 {
		if err = netlink.LinkSetMTU(link, mtu); err != nil {
			logger.Warn("Failed to set device MTU",
				zap.String("device", name),
				zap.Int("mtu", mtu),
				zap.Error(err),
			)
		}
	}

	if err = netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("failed to bring up link %s: %w", name, err)
	}

	for _, prefix := range prefixes {
		addr, err := netlink.ParseAddr(prefix.String())
		if err != nil {
			logger.Warn("Failed to parse device address",
				zap.String("device", name),
				zap.Stringer("prefix", prefix),
				zap.Error(err),
			)
			continue
		}

		if err = netlink.AddrReplace(link, addr); err != nil {
			logger.Warn("Failed to assign device address",
				zap.String("device", name),
				zap.Stringer("prefix", prefix),
				zap.Error(err),
			)
		}
	}

	return nil
}
