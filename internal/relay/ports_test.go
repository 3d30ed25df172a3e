package relay

import (
	"testing"

	"github.com/sabouaram/unicaster/internal/config"
)

func TestServerSlotPorts(t *testing.T) {
	c := config.Default()
	c.ListenPort = 23000
	c.ServerBasePort = 23000
	c.ClientBasePort = 23100

	got := ServerSlotPorts(c, 0)
	want := SlotPorts{SourcePort: 23000, RelayPort: 23001, DestinationPort: 23101}
	if got != want {
		t.Fatalf("ServerSlotPorts(0) = %+v, want %+v", got, want)
	}

	got2 := ServerSlotPorts(c, 2)
	want2 := SlotPorts{SourcePort: 23000, RelayPort: 23003, DestinationPort: 23103}
	if got2 != want2 {
		t.Fatalf("ServerSlotPorts(2) = %+v, want %+v", got2, want2)
	}
}

func TestClientSlotPorts(t *testing.T) {
	c := config.Default()
	c.ServerBasePort = 23000
	c.ClientBasePort = 23100
	c.EndpointPort = 7777

	got := ClientSlotPorts(c, 0)
	want := SlotPorts{SourcePort: 23001, RelayPort: 23101, DestinationPort: 7777}
	if got != want {
		t.Fatalf("ClientSlotPorts(0) = %+v, want %+v", got, want)
	}

	got2 := ClientSlotPorts(c, 1)
	want2 := SlotPorts{SourcePort: 23002, RelayPort: 23102, DestinationPort: 7777}
	if got2 != want2 {
		t.Fatalf("ClientSlotPorts(1) = %+v, want %+v", got2, want2)
	}
}

func TestSlotPortsAgreeAcrossSides(t *testing.T) {
	c := config.Default()
	c.ServerBasePort = 23000
	c.ClientBasePort = 23100

	for i := 0; i < 4; i++ {
		srv := ServerSlotPorts(c, i)
		cli := ClientSlotPorts(c, i)
		if srv.RelayPort != cli.SourcePort {
			t.Fatalf("slot %d: server RelayPort %d != client SourcePort %d", i, srv.RelayPort, cli.SourcePort)
		}
	}
}
