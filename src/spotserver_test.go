package jt9decode

import (
	"bufio"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_SpotServer(t *testing.T) {
	var server, err = ListenSpots("127.0.0.1:0", nil)
	require.NoError(t, err)
	defer server.Close()

	require.NotZero(t, server.Port())

	var conn, dialErr = net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(server.Port()))
	require.NoError(t, dialErr)
	defer conn.Close()

	require.Eventually(t, func() bool { return server.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	server.Send("001815   4 -0.2 1470 ~  CQ EA8TN IL18")
	server.Send("001815 -12  0.3 2100 ~  K1ABC G4XYZ RR73")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck

	var r = bufio.NewReader(conn)

	var line, readErr = r.ReadString('\n')
	require.NoError(t, readErr)
	assert.Equal(t, "001815   4 -0.2 1470 ~  CQ EA8TN IL18\r\n", line)

	line, readErr = r.ReadString('\n')
	require.NoError(t, readErr)
	assert.Equal(t, "001815 -12  0.3 2100 ~  K1ABC G4XYZ RR73\r\n", line)
}

func Test_SpotServerClose(t *testing.T) {
	var server, err = ListenSpots("127.0.0.1:0", nil)
	require.NoError(t, err)

	var conn, dialErr = net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(server.Port()))
	require.NoError(t, dialErr)
	defer conn.Close()

	require.Eventually(t, func() bool { return server.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, server.Close())
	assert.Zero(t, server.Clients())

	// Client sees the connection go.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	var _, readErr = bufio.NewReader(conn).ReadString('\n')
	assert.Error(t, readErr)

	// Sending to nobody is fine.
	server.Send("anything")
}

func Test_SpotServerListenFails(t *testing.T) {
	var server, err = ListenSpots("127.0.0.1:0", nil)
	require.NoError(t, err)
	defer server.Close()

	var _, again = ListenSpots("127.0.0.1:"+strconv.Itoa(server.Port()), nil)
	assert.ErrorIs(t, again, ErrIO)
}
