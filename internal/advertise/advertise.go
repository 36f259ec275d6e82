// Package advertise announces a running bridge on the local network with
// DNS-SD over multicast DNS.
package advertise

import (
	"context"
	"net"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"
	"github.com/sirupsen/logrus"
)

const (
	Service  = "_sergw._tcp"
	Domain   = "local."
	Provider = "sergw"
)

// InstanceName is the DNS-SD instance for a device path, e.g. "sergw:ttyUSB0"
func InstanceName(device string) string {
	base := path.Base(strings.TrimSpace(device))
	if base == "." || base == "/" || base == "" {
		return Provider
	}
	return Provider + ":" + base
}

// TXT returns the TXT records published alongside the service
func TXT(id uuid.UUID) []string {
	return []string{"provider=" + Provider, "id=" + id.String()}
}

type shutdowner interface {
	Shutdown()
}

// register is replaced in tests
var register = func(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (shutdowner, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// Run advertises device on port until ctx is done. A responder that cannot
// start is logged and otherwise ignored.
func Run(ctx context.Context, device string, port int, id uuid.UUID, log *logrus.Entry) {
	instance := InstanceName(device)
	log = log.WithFields(logrus.Fields{"instance": instance, "service": Service, "port": port})

	srv, err := register(instance, Service, Domain, port, TXT(id), nil)
	if err != nil {
		log.WithError(err).Warn("mDNS advertisement failed, continuing without it")
		return
	}
	log.Info("advertising on mDNS")

	<-ctx.Done()
	srv.Shutdown()
}
