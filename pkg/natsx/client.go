package natsx

import (
	"errors"

	"github.com/nats-io/nats.go"
)

// ClientName is how hoot identifies itself to the NATS server.
const ClientName = "hoot"

// Connect dials url with compression enabled and the hoot client name. Extra
// options are applied after the defaults.
func Connect(url string, opts ...nats.Option) (*nats.Conn, error) {
	if url == "" {
		return nil, errors.New("natsx: url is required")
	}
	all := append([]nats.Option{nats.Name(ClientName), nats.Compression(true)}, opts...)
	return nats.Connect(url, all...)
}
