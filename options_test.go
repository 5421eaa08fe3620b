package loopcast

import (
	"flag"
	"testing"

	"github.com/sirupsen/logrus"
)

func parseTestFlags(t *testing.T, role Role, args []string) *Options {
	t.Helper()
	log := logrus.NewEntry(logrus.New())
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	opts, err := ParseFlags(role, fs, args, log)
	if err != nil {
		t.Fatalf("ParseFlags(%v): %v", args, err)
	}
	return opts
}

func TestParseFlagsImpliesKeepalives(t *testing.T) {
	tests := []struct {
		name string
		role Role
		args []string
	}{
		{name: "-N implies -k on sender", role: RoleSender, args: []string{"-N", "3"}},
		{name: "-r implies -k on sender", role: RoleSender, args: []string{"-r", "1"}},
		{name: "-r 0 still implies -k", role: RoleSender, args: []string{"-r", "0"}},
		{name: "-N implies -k on receiver", role: RoleReceiver, args: []string{"-N", "42"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := parseTestFlags(t, tt.role, tt.args)
			if !opts.Keepalives {
				t.Errorf("Keepalives = false, want true for args %v", tt.args)
			}
		})
	}
}

func TestParseFlagsNoImpliedKeepalivesByDefault(t *testing.T) {
	opts := parseTestFlags(t, RoleSender, nil)
	if opts.Keepalives {
		t.Errorf("Keepalives = true with no flags given, want false")
	}
}

func TestParseFlagsRoleDependentDefaultMaxWait(t *testing.T) {
	sender := parseTestFlags(t, RoleSender, []string{"-k"})
	receiver := parseTestFlags(t, RoleReceiver, []string{"-k"})
	if sender.MaxWait != DefaultMaxWait+1 {
		t.Errorf("sender MaxWait = %d, want %d", sender.MaxWait, DefaultMaxWait+1)
	}
	if receiver.MaxWait != DefaultMaxWait {
		t.Errorf("receiver MaxWait = %d, want %d", receiver.MaxWait, DefaultMaxWait)
	}
}

func TestParseFlagsExplicitMaxWaitOverridesDefault(t *testing.T) {
	opts := parseTestFlags(t, RoleSender, []string{"-k", "-m", "9"})
	if opts.MaxWait != 9 {
		t.Errorf("MaxWait = %d, want 9", opts.MaxWait)
	}
}

func TestParseFlagsInvalidPortKeepsDefault(t *testing.T) {
	opts := parseTestFlags(t, RoleSender, []string{"-p", "0"})
	if opts.Port != DefaultPort {
		t.Errorf("Port = %d, want default %d after invalid -p", opts.Port, DefaultPort)
	}
}

func TestParseFlagsInvalidAddressKeepsDefault(t *testing.T) {
	opts := parseTestFlags(t, RoleSender, []string{"-d", "not-an-ip"})
	if opts.MulticastAddr.String() != DefaultMulticastAddr {
		t.Errorf("MulticastAddr = %s, want default %s", opts.MulticastAddr, DefaultMulticastAddr)
	}
}
