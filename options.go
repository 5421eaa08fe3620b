package loopcast

import (
	"flag"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
)

// Defaults mirrored from the original program's options_init.
const (
	DefaultInterface     = "eth0"
	DefaultMulticastAddr = "239.0.0.1"
	DefaultPort          = 2121
	DefaultMaxChunks     = 50000
	DefaultMaxWait       = 5
	StatusCmdMaxLen      = 256
)

// Role distinguishes sender-only and receiver-only flag semantics.
type Role int

const (
	RoleReceiver Role = iota
	RoleSender
)

func (r Role) String() string {
	if r == RoleSender {
		return "sender"
	}
	return "receiver"
}

// Options holds the shared and role-specific configuration for one peer.
// Its lifetime equals the process.
type Options struct {
	Role Role

	Interface     string
	MulticastAddr net.IP
	Port          int

	MaxChunks uint32
	Verbose   bool
	MaxWait   int

	// ClientsNumber is the sender's required-quorum count, or (on the
	// receiver) an explicit client id override. A value of 0 means "not
	// set" on both roles, matching the original's reuse of one field.
	ClientsNumber int

	BWLimit    int
	Keepalives bool

	Output      string
	ReturnValue uint8
	ExitOnValue bool

	StatusCmd  string
	StatusStep int
}

// NewOptions returns an Options pre-filled with the role's defaults.
func NewOptions(role Role) *Options {
	return &Options{
		Role:          role,
		Interface:     DefaultInterface,
		MulticastAddr: net.ParseIP(DefaultMulticastAddr),
		Port:          DefaultPort,
		MaxChunks:     DefaultMaxChunks,
	}
}

// enableKeepalives turns on the keepalive channel and, if no explicit
// -m was given yet, picks the role-appropriate default maxwait. Sender
// and receiver defaults differ by one second so that, with keepalives
// freshly enabled at default settings, a sender's census-empty timeout
// always outlives a receiver's heartbeat period.
func (o *Options) enableKeepalives() {
	o.Keepalives = true
	if o.MaxWait == 0 {
		if o.Role == RoleSender {
			o.MaxWait = DefaultMaxWait + 1
		} else {
			o.MaxWait = DefaultMaxWait
		}
	}
}

// ParseFlags registers the CLI surface of spec.md §6.2 for the given role
// on fs and parses args. Configuration errors are diagnostic: an invalid
// value is logged via log and the default (or prior value) is kept, never
// fatal.
func ParseFlags(role Role, fs *flag.FlagSet, args []string, log *logrus.Entry) (*Options, error) {
	o := NewOptions(role)

	var addr string
	var clientID int

	fs.StringVar(&o.Interface, "i", DefaultInterface, "multicast interface name")
	fs.StringVar(&addr, "d", DefaultMulticastAddr, "multicast group address")
	fs.IntVar(&o.Port, "p", DefaultPort, "data port; keepalives use port+1")
	fs.BoolVar(&o.Keepalives, "k", false, "enable keepalives")
	fs.IntVar(&o.MaxWait, "m", 0, "maxwait seconds (role-dependent meaning)")
	fs.IntVar(&clientID, "N", 0, "sender: required client quorum; receiver: explicit client id (implies -k)")
	var maxChunks int
	fs.IntVar(&maxChunks, "n", DefaultMaxChunks, "maximum number of chunks")
	var returnValue int
	fs.IntVar(&returnValue, "r", 0, "sender: returnvalue stamped into chunks; receiver: exit code reported in keepalives (implies -k)")
	fs.BoolVar(&o.Verbose, "v", false, "verbose diagnostics")

	if role == RoleSender {
		fs.StringVar(&o.Output, "o", "", "destination file for census dump")
		fs.IntVar(&o.BWLimit, "w", 0, "bandwidth limit in KiB/s")
	} else {
		fs.BoolVar(&o.ExitOnValue, "R", false, "exit as soon as the exit code is known")
		fs.StringVar(&o.StatusCmd, "x", "", "status hook program, invoked with the percent as argument")
		fs.IntVar(&o.StatusStep, "s", 0, "status hook step percent (reserved; only 0%% and 100%% fire)")
	}

	fs.Usage = func() { usage(role, fs) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Only flags the caller actually passed get their validation/side
	// effects applied — mirroring the original's getopt switch, whose
	// cases only run when the option is present on the command line.
	given := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { given[f.Name] = true })

	if given["d"] {
		if ip := net.ParseIP(addr); ip != nil {
			o.MulticastAddr = ip
		} else {
			log.Warnf("'%s' is not a valid ip address, keeping default %s", addr, DefaultMulticastAddr)
		}
	}

	if given["p"] && (o.Port <= 0 || o.Port >= 65535) {
		log.Warnf("'%d' is not a valid ip port number, keeping default %d", o.Port, DefaultPort)
		o.Port = DefaultPort
	}

	if given["n"] {
		if maxChunks > 0 {
			o.MaxChunks = uint32(maxChunks)
		} else {
			log.Warnf("'%d' is not a valid chunk number, keeping default %d", maxChunks, DefaultMaxChunks)
		}
	}

	if given["N"] {
		if clientID >= 0 && clientID < 65535 {
			o.ClientsNumber = clientID
			o.enableKeepalives()
		} else {
			log.Warnf("'%d' is not a valid client number", clientID)
		}
	}

	if given["r"] {
		o.ReturnValue = uint8(returnValue)
		o.enableKeepalives()
	}

	if given["k"] {
		o.enableKeepalives()
	}

	if given["m"] && o.MaxWait <= 0 {
		log.Warnf("'%d' is not a valid maximum loop number", o.MaxWait)
		o.MaxWait = 0
	}

	if given["w"] && o.BWLimit <= 0 {
		log.Warnf("'%d' is not a valid bandwidth limit", o.BWLimit)
		o.BWLimit = 0
	}

	if role == RoleReceiver && given["s"] {
		if o.StatusStep <= 0 || o.StatusStep > 100 {
			log.Warnf("'%d' is not a valid status step value (0<n<=100)", o.StatusStep)
			o.StatusStep = 0
		}
	}

	return o, nil
}

func usage(role Role, fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage:\n\t%s [options]\n", fs.Name())
	fmt.Fprintf(fs.Output(), "\t  -h : this help screen\n")
	fmt.Fprintf(fs.Output(), "\t  -i <ethernet interface name>\n")
	fmt.Fprintf(fs.Output(), "\t  -d <multicast ip address>\n")
	fmt.Fprintf(fs.Output(), "\t  -p <port number> : port number used to transmit data. If keepalive messages\n"+
		"\t\tare enabled, <port number+1> is also used.\n")
	if role == RoleSender {
		fmt.Fprintf(fs.Output(), "\t  -k : activate keepalive messages, stop sending data if <maxwait> timeout is\n"+
			"\t\treached without receiving at least one keepalive message (default %ds).\n", DefaultMaxWait+1)
		fmt.Fprintf(fs.Output(), "\t  -m <maxwait> : maximum time to send data without a keepalive; with no\n"+
			"\t\tkeepalives, a minimum duration before leaving (0 means infinite).\n")
		fmt.Fprintf(fs.Output(), "\t  -N : wait this number of clients before sending data (implies -k).\n")
	} else {
		fmt.Fprintf(fs.Output(), "\t  -k : activate keepalive messages, send these if more loops are needed.\n")
		fmt.Fprintf(fs.Output(), "\t  -m <maxwait> : time to wait before sending a new keepalive message.\n")
		fmt.Fprintf(fs.Output(), "\t  -N : force the client to use the specified id (default derived from the\n"+
			"\t\tinterface's address).\n")
	}
	fmt.Fprintf(fs.Output(), "\t  -n <chunk numbers> : how many %dKB chunks to hold.\n", ChunkSize/1024)
	if role == RoleSender {
		fmt.Fprintf(fs.Output(), "\t  -o <filename> : destination for census dump\n")
		fmt.Fprintf(fs.Output(), "\t  -r <return value> : returned by the receiver as exit code\n")
		fmt.Fprintf(fs.Output(), "\t  -w <bwlimit> in KiB/s : cap send rate (default unlimited)\n")
	} else {
		fmt.Fprintf(fs.Output(), "\t  -r <value> : reported to the sender as the keepalive exit code\n")
		fmt.Fprintf(fs.Output(), "\t  -R : exit as soon as the exit code is known, no payload is written\n")
		fmt.Fprintf(fs.Output(), "\t  -x </path/to/some/app> : invoked at 0%% and 100%% of transfer completion\n")
		fmt.Fprintf(fs.Output(), "\t  -s <step value> : 0%% and 100%% always fire (still reserved; no other step fires)\n")
	}
	fmt.Fprintf(fs.Output(), "\t  -v : be verbose\n")
}
