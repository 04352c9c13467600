package jt9decode

/*------------------------------------------------------------------
 *
 * Purpose:   	Announce the spot server using DNS-SD
 *
 * Description:
 *
 *     Most people have typed in enough IP addresses and ports by now, and
 *     would rather just pick a decoder that is automatically discovered
 *     on the local network.
 *
 *     This uses the pure-Go github.com/brutella/dnssd package for
 *     mDNS/DNS-SD service announcement without requiring any system
 *     daemon or C library dependencies.
 */

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

const DNS_SD_SERVICE = "_jt9-spots._tcp"

/* Get a default service name to publish. By default,
 * "jt9decode on <hostname>", or just "jt9decode" if hostname cannot
 * be obtained.
 */
func dnsSDDefaultServiceName() string {
	var hostname, hostnameErr = os.Hostname()
	if hostnameErr != nil {
		return "jt9decode"
	}

	// on some systems, an FQDN is returned; remove domain part
	hostname, _, _ = strings.Cut(hostname, ".")

	return "jt9decode on " + hostname
}

// dnsSDAnnounce responds to queries for the service until ctx is done.
func dnsSDAnnounce(ctx context.Context, name string, port int, logger *log.Logger) error {
	logger = quietLogger(logger)

	if name == "" {
		name = dnsSDDefaultServiceName()
	}

	var cfg = dnssd.Config{ //nolint:exhaustruct
		Name: name,
		Type: DNS_SD_SERVICE,
		Port: port,
	}

	var sv, svErr = dnssd.NewService(cfg)
	if svErr != nil {
		return fmt.Errorf("DNS-SD: failed to create service: %w", svErr)
	}

	var rp, rpErr = dnssd.NewResponder()
	if rpErr != nil {
		return fmt.Errorf("DNS-SD: failed to create responder: %w", rpErr)
	}

	var _, addErr = rp.Add(sv)
	if addErr != nil {
		return fmt.Errorf("DNS-SD: failed to add service: %w", addErr)
	}

	logger.Info("DNS-SD: Announcing spots", "port", port, "name", name)

	var respondErr = rp.Respond(ctx)
	if respondErr != nil && !errors.Is(respondErr, context.Canceled) {
		return fmt.Errorf("DNS-SD: responder error: %w", respondErr)
	}

	return nil
}
