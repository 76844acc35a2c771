package gateway

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerchantOrderID_RoundTrip(t *testing.T) {
	entity := uuid.New().String()
	user := uuid.New().String()

	for _, flow := range []Flow{FlowWallet, FlowBuy, FlowRent} {
		moid := MerchantOrderID(flow, entity, user)

		gotFlow, gotEntity, gotUser, err := ParseMerchantOrderID(moid)
		require.NoError(t, err, "flow %s", flow)
		assert.Equal(t, flow, gotFlow)
		assert.Equal(t, entity, gotEntity)
		assert.Equal(t, user, gotUser)
	}
}

func TestMerchantOrderID_SuffixVaries(t *testing.T) {
	entity := uuid.New().String()
	user := uuid.New().String()

	a := MerchantOrderID(FlowRent, entity, user)
	b := MerchantOrderID(FlowRent, entity, user)
	assert.NotEqual(t, a, b, "suffix must make retried orders distinct")
}

func TestParseMerchantOrderID_Malformed(t *testing.T) {
	entity := uuid.New().String()
	user := uuid.New().String()

	cases := []string{
		"",
		"rent",
		"rent-" + entity,
		"rent-" + entity + "-" + user, // missing suffix
		"refund-" + entity + "-" + user + "-abcd1234",
		"rent-not-a-uuid-" + user + "-abcd1234",
		"rent-" + entity + "-" + strings.Repeat("x", 36) + "-abcd1234",
	}
	for _, s := range cases {
		_, _, _, err := ParseMerchantOrderID(s)
		assert.Error(t, err, "input %q", s)
	}
}
