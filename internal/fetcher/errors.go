package fetcher

import "errors"

var (
	// ErrInvalidProxyAddress is returned when a SOCKS5 proxy address is not "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address: expected host:port")
)
