package jetstream

import (
	"errors"
	"testing"
	"time"
)

func TestParseMetadata(t *testing.T) {
	reply := "$JS.ACK.ORDERS.worker.3.17.12.1700000000123456789.5"
	meta, err := ParseMetadata(reply)
	if err != nil {
		t.Fatalf("ParseMetadata: %v", err)
	}
	if meta.Stream != "ORDERS" || meta.Consumer != "worker" {
		t.Errorf("stream/consumer = %q/%q", meta.Stream, meta.Consumer)
	}
	if meta.NumDelivered != 3 || meta.StreamSeq != 17 || meta.ConsumerSeq != 12 || meta.NumPending != 5 {
		t.Errorf("counters wrong: %+v", meta)
	}
	if want := time.Unix(0, 1700000000123456789); !meta.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", meta.Timestamp, want)
	}
	if meta.Domain != "" {
		t.Errorf("domain = %q, want empty", meta.Domain)
	}
}

func TestParseMetadataDomain(t *testing.T) {
	reply := "$JS.ACK.hub.acchash.ORDERS.worker.1.2.3.1700000000000000000.0.token.rand"
	meta, err := ParseMetadata(reply)
	if err != nil {
		t.Fatalf("ParseMetadata: %v", err)
	}
	if meta.Domain != "hub" || meta.Stream != "ORDERS" || meta.Consumer != "worker" {
		t.Errorf("parsed %+v", meta)
	}
}

func TestParseMetadataInvalid(t *testing.T) {
	bad := []string{
		"",
		"foo.bar",
		"$JS.ACK.too.short",
		"$JS.NACK.S.c.1.2.3.4.5",
		"JS.ACK.S.c.1.2.3.4.5",
		"$JS.ACK.S.c.one.2.3.4.5",
	}
	for _, reply := range bad {
		if _, err := ParseMetadata(reply); !errors.Is(err, ErrInvalidAck) {
			t.Errorf("ParseMetadata(%q) error = %v, want ErrInvalidAck", reply, err)
		}
	}
}

func TestValidNames(t *testing.T) {
	if err := checkStreamName(""); !errors.Is(err, ErrStreamNameRequired) {
		t.Errorf("empty stream name error = %v", err)
	}
	for _, name := range []string{"a.b", "a*", "a>", "a b"} {
		if err := checkStreamName(name); !errors.Is(err, ErrInvalidStreamName) {
			t.Errorf("checkStreamName(%q) = %v, want ErrInvalidStreamName", name, err)
		}
	}
	if err := checkStreamName("ORDERS-2"); err != nil {
		t.Errorf("checkStreamName(ORDERS-2) = %v", err)
	}
	if err := checkConsumerName(""); !errors.Is(err, ErrConsumerNameRequired) {
		t.Errorf("empty consumer name error = %v", err)
	}
}

func TestAPIErrorIs(t *testing.T) {
	err := &APIError{Code: 404, ErrCode: errCodeStreamNotFound, Description: "stream not found"}
	if !errors.Is(err, ErrStreamNotFound) {
		t.Error("APIError(10059) should match ErrStreamNotFound")
	}
	if errors.Is(err, ErrConsumerNotFound) {
		t.Error("APIError(10059) should not match ErrConsumerNotFound")
	}

	cerr := &APIError{Code: 404, ErrCode: errCodeConsumerNotFound}
	if !errors.Is(cerr, ErrConsumerNotFound) {
		t.Error("APIError(10014) should match ErrConsumerNotFound")
	}
}

func TestAPISubject(t *testing.T) {
	js := &Context{prefix: DefaultAPIPrefix}
	if got := js.apiSubject("STREAM", "CREATE", "ORDERS"); got != "$JS.API.STREAM.CREATE.ORDERS" {
		t.Errorf("apiSubject = %q", got)
	}
	js2 := &Context{prefix: "$JS.hub.API"}
	if got := js2.apiSubject("CONSUMER", "MSG", "NEXT", "S", "c"); got != "$JS.hub.API.CONSUMER.MSG.NEXT.S.c" {
		t.Errorf("apiSubject = %q", got)
	}
}
