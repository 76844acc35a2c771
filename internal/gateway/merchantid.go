package gateway

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/renthavenhq/renthaven/internal/apperr"
)

// Flow tags a merchant order id with the funding flow it belongs to, so
// the async callback can route itself back to the right entity. The
// format "<flow>-<entityId>-<userId>-<suffix>" is a wire convention the
// gateway echoes back byte-for-byte; do not change it.
type Flow string

const (
	FlowWallet Flow = "wallet"
	FlowBuy    Flow = "buy"
	FlowRent   Flow = "rent"
)

const uuidLen = 36

// MerchantOrderID encodes the routing fields for an outbound charge.
func MerchantOrderID(flow Flow, entityID, userID string) string {
	return fmt.Sprintf("%s-%s-%s-%s", flow, entityID, userID, uuid.New().String()[:8])
}

// ParseMerchantOrderID decodes a merchant order id back into its flow,
// entity and user. Entity and user ids are UUIDs, which themselves
// contain dashes, so the parse works on fixed widths after the flow tag.
func ParseMerchantOrderID(s string) (flow Flow, entityID, userID string, err error) {
	i := strings.IndexByte(s, '-')
	if i < 0 {
		return "", "", "", apperr.Validation("malformed merchant order id")
	}
	flow = Flow(s[:i])
	switch flow {
	case FlowWallet, FlowBuy, FlowRent:
	default:
		return "", "", "", apperr.Validation("unknown merchant order flow")
	}

	rest := s[i+1:]
	// "<entity uuid>-<user uuid>-<suffix>"
	if len(rest) < uuidLen+1+uuidLen+1 {
		return "", "", "", apperr.Validation("malformed merchant order id")
	}
	entityID = rest[:uuidLen]
	userID = rest[uuidLen+1 : uuidLen+1+uuidLen]
	if _, perr := uuid.Parse(entityID); perr != nil {
		return "", "", "", apperr.Validation("malformed merchant order id")
	}
	if _, perr := uuid.Parse(userID); perr != nil {
		return "", "", "", apperr.Validation("malformed merchant order id")
	}
	return flow, entityID, userID, nil
}
