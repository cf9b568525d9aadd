package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spitest"
)

func TestSPI_ExchangeCompletesOnce(t *testing.T) {
	port := &spitest.Playback{
		Playback: conntest.Playback{
			Ops: []conntest.IO{
				{W: []byte{0x8F, 0x00}, R: []byte{0x00, 0xD4}},
			},
		},
	}

	s, err := NewSPI(port, physic.MegaHertz)
	require.NoError(t, err)

	r := make([]byte, 2)
	done := make(chan error, 2)
	s.Exchange([]byte{0x8F, 0x00}, r, func(err error) { done <- err })

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("exchange never completed")
	}
	assert.Equal(t, byte(0xD4), r[1])

	select {
	case <-done:
		t.Fatal("done called twice")
	case <-time.After(20 * time.Millisecond):
	}
	require.NoError(t, port.Close())
}
