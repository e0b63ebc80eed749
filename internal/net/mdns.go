package net

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/hashicorp/mdns"
)

const ServiceType = "_conceptcanvas._tcp"

// Relay is a relay found on the local network.
type Relay struct {
	Name string
	Addr string
	Info []string
}

// Advertise announces a relay listening on port over mDNS. Shut the returned
// server down to stop advertising.
func Advertise(port int, info ...string) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("could not get hostname: %w", err)
	}
	if len(info) == 0 {
		info = []string{"ConceptCanvas relay"}
	}

	service, err := mdns.NewMDNSService(host, ServiceType, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	return server, nil
}

// Browse looks for relays until timeout and reports each reachable IPv4 entry.
func Browse(ctx context.Context, timeout time.Duration, found func(Relay)) error {
	entries := make(chan *mdns.ServiceEntry, 8)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			found(Relay{
				Name: e.Name,
				Addr: net.JoinHostPort(e.AddrV4.String(), fmt.Sprint(e.Port)),
				Info: e.InfoFields,
			})
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	// Cancelling ctx closes the query client, so the browse ends early.
	err := mdns.QueryContext(ctx, params)
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	close(entries)
	<-finished
	return err
}

// FirstRelay browses until the first relay answers.
func FirstRelay(ctx context.Context, timeout time.Duration) (Relay, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := make(chan Relay, 1)
	go Browse(ctx, timeout, func(r Relay) {
		select {
		case result <- r:
			cancel()
		default:
		}
	})
	select {
	case r := <-result:
		return r, nil
	case <-ctx.Done():
		select {
		case r := <-result:
			return r, nil
		default:
		}
		return Relay{}, fmt.Errorf("no relay found on the local network")
	}
}
