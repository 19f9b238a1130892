// Package jetstream layers the JetStream API over a gonats client:
// typed request/response administration of streams and consumers,
// acknowledged publishes, and pull-based message delivery.
package jetstream

import (
	"time"
)

// RetentionPolicy controls when messages leave a stream.
type RetentionPolicy string

const (
	LimitsPolicy    RetentionPolicy = "limits"
	InterestPolicy  RetentionPolicy = "interest"
	WorkQueuePolicy RetentionPolicy = "workqueue"
)

// StorageType selects the stream's backing store.
type StorageType string

const (
	FileStorage   StorageType = "file"
	MemoryStorage StorageType = "memory"
)

// DiscardPolicy controls behavior when limits are hit.
type DiscardPolicy string

const (
	DiscardOld DiscardPolicy = "old"
	DiscardNew DiscardPolicy = "new"
)

// DeliverPolicy selects where a consumer starts.
type DeliverPolicy string

const (
	DeliverAll            DeliverPolicy = "all"
	DeliverLast           DeliverPolicy = "last"
	DeliverNew            DeliverPolicy = "new"
	DeliverByStartSeq     DeliverPolicy = "by_start_sequence"
	DeliverByStartTime    DeliverPolicy = "by_start_time"
	DeliverLastPerSubject DeliverPolicy = "last_per_subject"
)

// AckPolicy controls the acknowledgement contract.
type AckPolicy string

const (
	AckExplicit AckPolicy = "explicit"
	AckNone     AckPolicy = "none"
	AckAll      AckPolicy = "all"
)

// ReplayPolicy controls delivery pacing.
type ReplayPolicy string

const (
	ReplayInstant  ReplayPolicy = "instant"
	ReplayOriginal ReplayPolicy = "original"
)

// StreamConfig describes a stream.
type StreamConfig struct {
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	Subjects          []string        `json:"subjects,omitempty"`
	Retention         RetentionPolicy `json:"retention"`
	Storage           StorageType     `json:"storage"`
	Discard           DiscardPolicy   `json:"discard,omitempty"`
	MaxConsumers      int             `json:"max_consumers"`
	MaxMsgs           int64           `json:"max_msgs"`
	MaxBytes          int64           `json:"max_bytes"`
	MaxAge            time.Duration   `json:"max_age"`
	MaxMsgsPerSubject int64           `json:"max_msgs_per_subject,omitempty"`
	MaxMsgSize        int32           `json:"max_msg_size,omitempty"`
	DuplicateWindow   time.Duration   `json:"duplicate_window,omitempty"`
	Replicas          int             `json:"num_replicas"`
	NoAck             bool            `json:"no_ack,omitempty"`
	Sealed            bool            `json:"sealed,omitempty"`
	DenyDelete        bool            `json:"deny_delete,omitempty"`
	DenyPurge         bool            `json:"deny_purge,omitempty"`
	AllowRollup       bool            `json:"allow_rollup_hdrs,omitempty"`
}

// StreamState is the live accounting of a stream.
type StreamState struct {
	Msgs      uint64    `json:"messages"`
	Bytes     uint64    `json:"bytes"`
	FirstSeq  uint64    `json:"first_seq"`
	FirstTime time.Time `json:"first_ts"`
	LastSeq   uint64    `json:"last_seq"`
	LastTime  time.Time `json:"last_ts"`
	Consumers int       `json:"consumer_count"`
}

// ClusterInfo reports replica placement.
type ClusterInfo struct {
	Name     string     `json:"name,omitempty"`
	Leader   string     `json:"leader,omitempty"`
	Replicas []PeerInfo `json:"replicas,omitempty"`
}

// PeerInfo is one replica's status.
type PeerInfo struct {
	Name    string        `json:"name"`
	Current bool          `json:"current"`
	Offline bool          `json:"offline,omitempty"`
	Active  time.Duration `json:"active"`
	Lag     uint64        `json:"lag,omitempty"`
}

// StreamSource describes a sourced or mirrored stream.
type StreamSource struct {
	Name          string     `json:"name"`
	OptStartSeq   uint64     `json:"opt_start_seq,omitempty"`
	OptStartTime  *time.Time `json:"opt_start_time,omitempty"`
	FilterSubject string     `json:"filter_subject,omitempty"`
}

// StreamInfo is the server's view of a stream.
type StreamInfo struct {
	Config  StreamConfig   `json:"config"`
	Created time.Time      `json:"created"`
	State   StreamState    `json:"state"`
	Cluster *ClusterInfo   `json:"cluster,omitempty"`
	Mirror  *StreamSource  `json:"mirror,omitempty"`
	Sources []StreamSource `json:"sources,omitempty"`
}

// ConsumerConfig describes a consumer.
type ConsumerConfig struct {
	Name            string          `json:"name,omitempty"`
	Durable         string          `json:"durable_name,omitempty"`
	Description     string          `json:"description,omitempty"`
	DeliverPolicy   DeliverPolicy   `json:"deliver_policy"`
	OptStartSeq     uint64          `json:"opt_start_seq,omitempty"`
	OptStartTime    *time.Time      `json:"opt_start_time,omitempty"`
	AckPolicy       AckPolicy       `json:"ack_policy"`
	AckWait         time.Duration   `json:"ack_wait,omitempty"`
	MaxDeliver      int             `json:"max_deliver,omitempty"`
	BackOff         []time.Duration `json:"backoff,omitempty"`
	FilterSubject   string          `json:"filter_subject,omitempty"`
	ReplayPolicy    ReplayPolicy    `json:"replay_policy"`
	SampleFrequency string          `json:"sample_freq,omitempty"`
	MaxWaiting      int             `json:"max_waiting,omitempty"`
	MaxAckPending   int             `json:"max_ack_pending,omitempty"`
	MaxBatch        int             `json:"max_batch,omitempty"`
	MaxExpires      time.Duration   `json:"max_expires,omitempty"`
	InactiveThresh  time.Duration   `json:"inactive_threshold,omitempty"`
	Replicas        int             `json:"num_replicas"`
	MemoryStorage   bool            `json:"mem_storage,omitempty"`
}

// SequenceInfo pairs consumer and stream sequences.
type SequenceInfo struct {
	Consumer uint64     `json:"consumer_seq"`
	Stream   uint64     `json:"stream_seq"`
	Last     *time.Time `json:"last_active,omitempty"`
}

// ConsumerInfo is the server's view of a consumer.
type ConsumerInfo struct {
	Stream         string         `json:"stream_name"`
	Name           string         `json:"name"`
	Created        time.Time      `json:"created"`
	Config         ConsumerConfig `json:"config"`
	Delivered      SequenceInfo   `json:"delivered"`
	AckFloor       SequenceInfo   `json:"ack_floor"`
	NumAckPending  int            `json:"num_ack_pending"`
	NumRedelivered int            `json:"num_redelivered"`
	NumWaiting     int            `json:"num_waiting"`
	NumPending     uint64         `json:"num_pending"`
	Cluster        *ClusterInfo   `json:"cluster,omitempty"`
	PushBound      bool           `json:"push_bound,omitempty"`
}

// PubAck is the server's acknowledgement of a JetStream publish.
type PubAck struct {
	Stream    string `json:"stream"`
	Sequence  uint64 `json:"seq"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Domain    string `json:"domain,omitempty"`
}

// AccountInfo summarizes the account's JetStream usage; returned by
// the $JS.API.INFO probe.
type AccountInfo struct {
	Memory    uint64 `json:"memory"`
	Store     uint64 `json:"storage"`
	Streams   int    `json:"streams"`
	Consumers int    `json:"consumers"`
}

// apiError is the error object embedded in API responses.
type apiError struct {
	Code        int    `json:"code"`
	ErrCode     int    `json:"err_code"`
	Description string `json:"description"`
}

// apiResponse is the envelope every API reply shares.
type apiResponse struct {
	Type  string    `json:"type"`
	Error *apiError `json:"error,omitempty"`
}

// nextRequest is the body published to MSG.NEXT for a pull fetch.
type nextRequest struct {
	Batch   int   `json:"batch"`
	Expires int64 `json:"expires,omitempty"`
	NoWait  bool  `json:"no_wait,omitempty"`
}
