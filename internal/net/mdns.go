package net

import (
	"context"
	"fmt"
	"net"
	"os"
	"sort"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

// Advertise announces a worker host on the local network under service
// (e.g. "_localink._tcp"). Shut the returned server down to withdraw it.
func Advertise(service string, port int, path string, logger *zap.Logger) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("could not get hostname: %w", err)
	}

	info := []string{"LocalInk worker", "path=" + path}
	zone, err := mdns.NewMDNSService(host, service, "", "", port, []net.IP{LocalIPv4()}, info)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: zone})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	logger.Info("[HOST] advertising over mDNS",
		zap.String("service", service),
		zap.String("instance", host),
		zap.Int("port", port))
	return server, nil
}

// Browse looks for worker hosts for up to timeout and returns their
// host:port addresses, sorted.
func Browse(ctx context.Context, service string, timeout time.Duration) ([]string, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	found := make(map[string]bool)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			found[fmt.Sprintf("%s:%d", e.AddrV4, e.Port)] = true
		}
	}()

	params := mdns.DefaultParams(service)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	err := mdns.Query(params)
	close(entries)
	<-done
	if err != nil {
		return nil, fmt.Errorf("mDNS query: %w", err)
	}

	addrs := make([]string, 0, len(found))
	for a := range found {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)
	return addrs, nil
}
