// Package address defines the peer-address value type used throughout netmsg
// to key connections, route replies, and identify clients.
package address

import "fmt"

// Address is an immutable (host, port) pair. It is comparable and safe to use
// as a map key.
type Address struct {
	Host string
	Port int
}

// New builds an Address from its parts.
func New(host string, port int) Address {
	return Address{Host: host, Port: port}
}

// String renders the address in "host:port" form.
func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// AsList returns the address as a two-element slice [host, port], the shape
// the request manager injects into a packet under the "addr" key.
func (a Address) AsList() []any {
	return []any{a.Host, a.Port}
}
