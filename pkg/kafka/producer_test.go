package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/relevance-lab/pkg/config"
)

func TestEncode(t *testing.T) {
	msg, err := encode(Event{Key: "animated film", Type: "search", Value: map[string]int{"total_hits": 3}})
	if err != nil {
		t.Fatal(err)
	}
	if string(msg.Key) != "animated film" {
		t.Errorf("key = %q", msg.Key)
	}
	if string(msg.Value) != `{"total_hits":3}` {
		t.Errorf("value = %s", msg.Value)
	}
	if len(msg.Headers) != 1 || msg.Headers[0].Key != TypeHeader || string(msg.Headers[0].Value) != "search" {
		t.Errorf("headers = %+v", msg.Headers)
	}

	msg, err = encode(Event{Key: "k", Value: 1})
	if err != nil || len(msg.Headers) != 0 {
		t.Errorf("untyped event: headers=%+v err=%v", msg.Headers, err)
	}
}

func TestPublishBatchRejectsUnencodableValue(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}}, "search-events")
	defer p.Close()

	var unsupported *json.UnsupportedTypeError
	err := p.PublishBatch(context.Background(), []Event{{Key: "ok", Value: 1}, {Key: "bad", Value: make(chan int)}})
	if !errors.As(err, &unsupported) {
		t.Fatalf("error = %v, want json.UnsupportedTypeError", err)
	}
	if err := p.PublishBatch(context.Background(), nil); err != nil {
		t.Errorf("empty batch: %v", err)
	}
}
