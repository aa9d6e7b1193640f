package broadcast

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannelNaming(t *testing.T) {
	req := require.New(t)

	req.Equal("room:lobby:seats", Channel("lobby", TopicSeats))
	req.Equal("room:patio:orders", Channel("patio", TopicOrders))
}
