// Package delivery moves normalized inbound messages to the hub, either by
// pushing them to a webhook or by buffering them for the hub to poll.
// Either way the contract is at-most-once: a failed delivery is logged by
// the caller and the message is gone.
package delivery

import (
	"context"

	"uk.co.dudmesh.bitlink/internal/model"
)

type Channel interface {
	Deliver(ctx context.Context, message *model.InboundMessage) error
}
