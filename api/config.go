// Package api holds the configuration fielddhcp is started with. It is
// shared between the commandline, config files and the responder.
package api

// Config is everything a responder needs to know about the segment it
// serves. The address fields are IPv4 literals, they are validated
// when a responder is built from the Config.
type Config struct {
	// ServerAddress is our own address on the segment, sent as the
	// server identifier and as siaddr.
	ServerAddress string `json:"server_address" mapstructure:"server-address"`
	// PoolStart and PoolEnd bound the addresses handed out. Both must
	// lie in the same /24.
	PoolStart  string `json:"pool_start" mapstructure:"pool-start"`
	PoolEnd    string `json:"pool_end" mapstructure:"pool-end"`
	SubnetMask string `json:"subnet_mask" mapstructure:"subnet-mask"`
	Router     string `json:"router" mapstructure:"router"`
	DNS        string `json:"dns" mapstructure:"dns"`

	// ListenAddr is the UDP ip:port to bind, ":67" if empty.
	ListenAddr string `json:"listen_addr,omitempty" mapstructure:"listen-addr"`
	// Interface ties the socket to one adapter, if set.
	Interface string `json:"interface,omitempty" mapstructure:"interface"`
}

// DefaultConfig returns the addressing of a typical isolated field
// network: we are 192.168.1.1 and route for the /24 ourselves.
func DefaultConfig() Config {
	return Config{
		ServerAddress: "192.168.1.1",
		PoolStart:     "192.168.1.50",
		PoolEnd:       "192.168.1.150",
		SubnetMask:    "255.255.255.0",
		Router:        "192.168.1.1",
		DNS:           "8.8.8.8",
	}
}
