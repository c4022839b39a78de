package nats

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/crypto/blake2b"

	"github.com/codewandler/esc-go/core/es"
	"github.com/codewandler/esc-go/core/serial"
	"github.com/codewandler/esc-go/core/sf"
)

const (
	defaultSubjectPrefix = "esc.streams"
	defaultStreamName    = "ESC_EVENTS"

	// maxWriteAttempts bounds retries of writes that lost the
	// last-subject-sequence race but may still be valid (e.g. AnyVersion).
	maxWriteAttempts = 10
	fetchBatch       = 100
)

// Message headers. Every message on a stream subject carries the state and
// version of the stream after the message, so the head of the subject
// describes the stream.
const (
	HeaderStream  = "Esc-Stream"
	HeaderKind    = "Esc-Kind"
	HeaderState   = "Esc-State"
	HeaderVersion = "Esc-Version"
	HeaderCount   = "Esc-Count"
)

const (
	kindCreated = "created"
	kindEvents  = "events"
	kindDeleted = "deleted"
)

type BackendConfig struct {
	Connect       Connector    // Connect creates the NATS connection. If nil, ConnectDefault() is used.
	Log           *slog.Logger // Log for diagnostics (optional)
	StreamName    string       // StreamName is the JetStream stream holding all event streams
	SubjectPrefix string       // SubjectPrefix is the prefix of per stream subjects
	Storage       jetstream.StorageType
	Replicas      int
	FetchTimeout  time.Duration // FetchTimeout bounds the wait for a batch of messages on reads
}

// Backend stores event streams in one JetStream stream, one subject per event
// stream. An append is a single message holding the whole batch and is
// published with an expected last subject sequence, so the server rejects
// writes based on a stale head.
type Backend struct {
	nc            *natsgo.Conn
	closeNc       closeFunc
	js            jetstream.JetStream
	stream        jetstream.Stream
	log           *slog.Logger
	subjectPrefix string
	fetchTimeout  time.Duration
	heads         sf.Group[head]
}

func NewBackend(cfg BackendConfig) (*Backend, error) {
	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}

	nc, closeNc, err := doConnect()
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		closeNc()
		return nil, err
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	streamName := strings.ToUpper(cfg.StreamName)
	if streamName == "" {
		streamName = defaultStreamName
	}

	subjectPrefix := strings.TrimSuffix(cfg.SubjectPrefix, ".")
	if subjectPrefix == "" {
		subjectPrefix = defaultSubjectPrefix
	}

	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 2 * time.Second
	}

	log = log.With(
		slog.String("backend", "nats_js"),
		slog.String("js_stream", streamName),
		slog.String("subject_prefix", subjectPrefix),
	)

	log.Debug("ensuring stream")

	stream, streamInfo, err := ensureStream(js, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPrefix + ".>"},
		Retention: jetstream.LimitsPolicy,
		Storage:   cfg.Storage,
		Replicas:  max(cfg.Replicas, 1),
		FirstSeq:  1,
		// hard deletes purge subjects
		DenyPurge:  false,
		DenyDelete: true,
	})
	if err != nil {
		closeNc()
		return nil, err
	}

	log.Debug("ensured", slog.Any("stream", streamInfo.Config.Name), slog.Uint64("msgs", streamInfo.State.Msgs))

	return &Backend{
		nc:            nc,
		closeNc:       closeNc,
		js:            js,
		stream:        stream,
		log:           log,
		subjectPrefix: subjectPrefix,
		fetchTimeout:  fetchTimeout,
	}, nil
}

func (b *Backend) Close() error {
	b.closeNc()
	b.log.Debug("closed backend")
	return nil
}

// === head ===

// head is the last message of a stream subject.
type head struct {
	seq  uint64
	info es.StreamInfo
}

func (b *Backend) head(ctx context.Context, name string) (head, error) {
	m, err := b.stream.GetLastMsgForSubject(ctx, b.subject(name))
	if errors.Is(err, jetstream.ErrMsgNotFound) {
		return head{}, nil
	}
	if err != nil {
		return head{}, fmt.Errorf("last message of stream %q: %w", name, err)
	}
	info, err := parseInfo(m.Header)
	if err != nil {
		return head{}, fmt.Errorf("head of stream %q (seq %d): %w", name, m.Sequence, err)
	}
	return head{seq: m.Sequence, info: info}, nil
}

// sharedHead is head for read paths: concurrent lookups of the same stream
// share one request, bounded by the fetch timeout rather than by the caller
// that started it.
func (b *Backend) sharedHead(ctx context.Context, name string) (head, error) {
	h, _, err := b.heads.DoContext(ctx, name, func(ctx context.Context) (head, error) {
		ctx, cancel := context.WithTimeout(ctx, b.fetchTimeout)
		defer cancel()
		return b.head(ctx, name)
	})
	return h, err
}

func (b *Backend) Info(ctx context.Context, name string) (es.StreamInfo, error) {
	h, err := b.sharedHead(ctx, name)
	if err != nil {
		return es.StreamInfo{}, err
	}
	return h.info, nil
}

// === writes ===

func (b *Backend) Create(ctx context.Context, id es.StreamID) error {
	name := id.Name()
	h, err := b.head(ctx, name)
	if err != nil {
		return err
	}
	if err := es.CheckCreate(h.info); err != nil {
		return err
	}
	msg := b.newMsg(name, kindCreated, es.StreamActive, 0, 0)
	_, err = b.js.PublishMsg(ctx, msg, jetstream.WithExpectLastSequencePerSubject(0))
	if isWrongLastSequence(err) {
		return es.ErrBackendStreamExists
	}
	if err != nil {
		return fmt.Errorf("create stream %q: %w", name, err)
	}
	b.heads.Forget(name)
	b.log.Debug("created stream", slog.String("stream", name))
	return nil
}

func (b *Backend) Append(ctx context.Context, name string, expected es.ExpectedVersion, records []es.Record) (int64, error) {
	data, err := encodeBatch(records)
	if err != nil {
		return 0, err
	}

	var version int64
	err = b.casWrite(ctx, name, func(h head) (*natsgo.Msg, error) {
		if err := es.CheckWrite(h.info, expected); err != nil {
			return nil, err
		}
		version = h.info.Version + int64(len(records))
		msg := b.newMsg(name, kindEvents, es.StreamActive, version, len(records))
		msg.Data = data
		return msg, nil
	})
	if err != nil {
		return 0, err
	}

	b.log.Debug(
		"append",
		slog.String("stream", name),
		slog.Int("num_events", len(records)),
		slog.Int64("version", version),
	)
	return version, nil
}

func (b *Backend) Delete(ctx context.Context, name string, expected es.ExpectedVersion, hard bool) error {
	state := es.StreamSoftDeleted
	if hard {
		state = es.StreamHardDeleted
	}

	err := b.casWrite(ctx, name, func(h head) (*natsgo.Msg, error) {
		if err := es.CheckDelete(h.info, expected); err != nil {
			return nil, err
		}
		version := h.info.Version
		if hard {
			version = 0
		}
		return b.newMsg(name, kindDeleted, state, version, 0), nil
	})
	if err != nil {
		return err
	}

	if hard {
		// the tombstone is the last message and survives the purge
		err = b.stream.Purge(ctx, jetstream.WithPurgeSubject(b.subject(name)), jetstream.WithPurgeKeep(1))
		if err != nil {
			return fmt.Errorf("purge stream %q: %w", name, err)
		}
	}
	b.log.Debug("deleted stream", slog.String("stream", name), state.SlogAttr())
	return nil
}

// casWrite publishes the message built from the current head, expecting the
// head to be unchanged. When another writer got there first, the head is
// re-read and build decides again.
func (b *Backend) casWrite(ctx context.Context, name string, build func(h head) (*natsgo.Msg, error)) error {
	for attempt := 1; ; attempt++ {
		h, err := b.head(ctx, name)
		if err != nil {
			return err
		}
		msg, err := build(h)
		if err != nil {
			return err
		}
		_, err = b.js.PublishMsg(ctx, msg, jetstream.WithExpectLastSequencePerSubject(h.seq))
		if err == nil {
			// reads after this write must not join a lookup that started before it
			b.heads.Forget(name)
			return nil
		}
		if !isWrongLastSequence(err) || attempt == maxWriteAttempts {
			return fmt.Errorf("publish to stream %q: %w", name, err)
		}
		b.log.Debug("head moved, retrying", slog.String("stream", name), slog.Int("attempt", attempt))
	}
}

// === reads ===

func (b *Backend) Read(ctx context.Context, name string, from int64, count int, dir es.Direction) ([]es.Record, error) {
	h, err := b.sharedHead(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := es.CheckRead(h.info); err != nil {
		return nil, err
	}
	lo, hi := es.ReadRange(h.info.Version, from, count, dir)
	if lo == hi {
		return nil, nil
	}

	cc, err := b.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		DeliverPolicy:     jetstream.DeliverAllPolicy,
		FilterSubjects:    []string{b.subject(name)},
		InactiveThreshold: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("read stream %q: %w", name, err)
	}
	records, err := b.consumeRecords(ctx, cc, h.seq, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("read stream %q: %w", name, err)
	}
	if dir == es.Backward {
		slices.Reverse(records)
	}
	return records, nil
}

// consumeRecords collects the records numbered [lo, hi) from the messages up
// to endSeq.
func (b *Backend) consumeRecords(
	ctx context.Context,
	cc jetstream.Consumer,
	endSeq uint64,
	lo, hi int64,
) ([]es.Record, error) {
	records := make([]es.Record, 0, hi-lo)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		mb, err := cc.Fetch(fetchBatch, jetstream.FetchMaxWait(b.fetchTimeout))
		if err != nil {
			return nil, err
		}

		empty := true
		for msg := range mb.Messages() {
			empty = false
			md, err := msg.Metadata()
			if err != nil {
				return nil, err
			}
			done, err := collectRecords(msg.Headers(), msg.Data(), lo, hi, &records)
			if err != nil {
				return nil, fmt.Errorf("message %d: %w", md.Sequence.Stream, err)
			}
			if done || md.Sequence.Stream >= endSeq {
				return records, nil
			}
		}
		if err := mb.Error(); err != nil {
			return nil, err
		}
		if empty {
			return nil, fmt.Errorf("no messages before sequence %d", endSeq)
		}
	}
}

// collectRecords appends the records of one message that fall into [lo, hi)
// and reports whether later messages can be skipped.
func collectRecords(h natsgo.Header, data []byte, lo, hi int64, out *[]es.Record) (bool, error) {
	if h.Get(HeaderKind) != kindEvents {
		return false, nil
	}
	info, err := parseInfo(h)
	if err != nil {
		return false, err
	}
	n, err := strconv.Atoi(h.Get(HeaderCount))
	if err != nil {
		return false, fmt.Errorf("header %s: %w", HeaderCount, err)
	}
	first := info.Version - int64(n)
	if first >= hi {
		return true, nil
	}
	if info.Version <= lo {
		return false, nil
	}

	batch, err := decodeBatch(data, first)
	if err != nil {
		return false, err
	}
	for _, r := range batch {
		if r.Number >= lo && r.Number < hi {
			*out = append(*out, r)
		}
	}
	return info.Version >= hi, nil
}

// === wire ===

type (
	wireBatch struct {
		Records []wireRecord `json:"records"`
	}
	wireRecord struct {
		EventID  string `json:"id"`
		Type     string `json:"type"`
		MimeType string `json:"mime_type"`
		Data     []byte `json:"data"`
	}
)

func encodeBatch(records []es.Record) ([]byte, error) {
	batch := wireBatch{Records: make([]wireRecord, 0, len(records))}
	for _, r := range records {
		batch.Records = append(batch.Records, wireRecord{
			EventID:  r.EventID.String(),
			Type:     r.Data.Type.String(),
			MimeType: r.Data.MimeType.String(),
			Data:     r.Data.Data,
		})
	}
	return json.Marshal(batch)
}

func decodeBatch(data []byte, first int64) ([]es.Record, error) {
	var batch wireBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	records := make([]es.Record, 0, len(batch.Records))
	for i, wr := range batch.Records {
		id, err := es.ParseEventID(wr.EventID)
		if err != nil {
			return nil, err
		}
		mt, err := serial.ParseMimeType(wr.MimeType)
		if err != nil {
			return nil, err
		}
		records = append(records, es.Record{
			EventID: id,
			Number:  first + int64(i),
			Data:    serial.SerializedData{Type: serial.SerializedDataType(wr.Type), MimeType: mt, Data: wr.Data},
		})
	}
	return records, nil
}

func (b *Backend) newMsg(name, kind string, state es.StreamState, version int64, count int) *natsgo.Msg {
	msg := natsgo.NewMsg(b.subject(name))
	msg.Header.Set(HeaderStream, name)
	msg.Header.Set(HeaderKind, kind)
	msg.Header.Set(HeaderState, strconv.Itoa(int(state)))
	msg.Header.Set(HeaderVersion, strconv.FormatInt(version, 10))
	msg.Header.Set(HeaderCount, strconv.Itoa(count))
	return msg
}

func parseInfo(h natsgo.Header) (es.StreamInfo, error) {
	code, err := strconv.Atoi(h.Get(HeaderState))
	if err != nil {
		return es.StreamInfo{}, fmt.Errorf("header %s: %w", HeaderState, err)
	}
	state, err := es.StreamStateOf(code)
	if err != nil {
		return es.StreamInfo{}, err
	}
	version, err := strconv.ParseInt(h.Get(HeaderVersion), 10, 64)
	if err != nil {
		return es.StreamInfo{}, fmt.Errorf("header %s: %w", HeaderVersion, err)
	}
	return es.StreamInfo{Exists: true, State: state, Version: version}, nil
}

// subject maps a stream name to its subject. Names are hashed since they
// may contain characters that are not valid in subject tokens.
func (b *Backend) subject(name string) string {
	return b.subjectPrefix + "." + SubjectToken(name)
}

// SubjectToken is the subject token of a stream name.
func SubjectToken(name string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(name))
	return hex.EncodeToString(h.Sum(nil))
}

func isWrongLastSequence(err error) bool {
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

func ensureStream(js jetstream.JetStream, cfg jetstream.StreamConfig) (s jetstream.Stream, si *jetstream.StreamInfo, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*natsgo.DefaultTimeout)
	defer cancel()

	s, err = js.CreateOrUpdateStream(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	si, err = s.Info(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s, si, nil
}

var _ es.Backend = (*Backend)(nil)
