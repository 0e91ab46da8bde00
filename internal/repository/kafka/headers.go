package kafka

import (
	"sort"

	"github.com/segmentio/kafka-go"
)

// headerCarrier collects message headers and doubles as an otel
// TextMapCarrier for trace propagation.
type headerCarrier map[string]string

func newHeaders(eventType string) headerCarrier {
	return headerCarrier{"event_type": eventType, "content_type": "application/json"}
}

func (h headerCarrier) Get(k string) string { return h[k] }
func (h headerCarrier) Set(k, v string)     { h[k] = v }

func (h headerCarrier) Keys() []string {
	ks := make([]string, 0, len(h))
	for k := range h {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

// list returns the headers in key order.
func (h headerCarrier) list() []kafka.Header {
	out := make([]kafka.Header, 0, len(h))
	for _, k := range h.Keys() {
		out = append(out, kafka.Header{Key: k, Value: []byte(h[k])})
	}
	return out
}
