package channel

import "github.com/deltaflow/deltaflow/node"

// Factory selects and builds the channel implementation for a wire, given
// the classification of its producer and consumer. One Factory is shared
// by every wire a scheduler creates, so its Config is applied uniformly.
type Factory struct {
	cfg Config
}

// NewFactory builds a Factory from cfg. A zero Config is valid and falls
// back to DefaultConfig's values.
func NewFactory(cfg Config) *Factory {
	return &Factory{cfg: cfg}
}

// Select builds the channel for a wire between a producer of kind
// producerKind and a consumer of kind consumerKind, honoring the
// consumer's declared capacity hint.
//
// Rules:
//   - Constant producer, Constant consumer (decided on the two kinds alone;
//     the consumer's other inputs are not inspected): no channel is needed;
//     Select returns (nil, true) and the scheduler short-circuits by
//     invoking the producer's body directly into the consumer's body,
//     skipping worker goroutines for both. Splitter and Running producers
//     never qualify for this case.
//   - Constant producer, any other consumer: a write-once constant channel.
//   - Any other producer: a bounded standard channel.
func (f *Factory) Select(producerKind, consumerKind node.Kind, capacityHint int, fanIndex string) (ch Channel, directWire bool) {
	if producerKind == node.Constant && consumerKind == node.Constant {
		return nil, true
	}
	if producerKind == node.Constant {
		return NewConstant(fanIndex), false
	}
	return NewStandard(f.cfg, capacityHint, fanIndex), false
}
