package publish

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/shaunagostinho/vedirect-dash/internal/vedirect"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type sent struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

// fakeClient implements only what Publisher calls.
type fakeClient struct {
	mqtt.Client
	connected    bool
	err          error
	sent         []sent
	disconnected bool
}

func (f *fakeClient) IsConnected() bool { return f.connected }
func (f *fakeClient) Disconnect(uint)   { f.disconnected = true }

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.sent = append(f.sent, sent{topic, qos, retained, payload.([]byte)})
	return doneToken{f.err}
}

func mpptRecord(t *testing.T) vedirect.Record {
	t.Helper()
	results := vedirect.NewParser().Feed(vedirect.Encode(
		vedirect.RawField{Label: "PID", Value: "0xA053"},
		vedirect.RawField{Label: "V", Value: "13500"},
		vedirect.RawField{Label: "PPV", Value: "120"},
	))
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("decode: %+v", results)
	}
	return results[0].Record
}

func TestTopic(t *testing.T) {
	tests := []struct {
		device string
		want   string
	}{
		{"roof", "vedirect/roof/solar_charger"},
		{"roof/east", "vedirect/roof_east/solar_charger"},
		{"a+b #1", "vedirect/a_b__1/solar_charger"},
	}
	for _, tt := range tests {
		if got := Topic("vedirect", tt.device, vedirect.ClassSolarCharger); got != tt.want {
			t.Errorf("Topic(%q) = %q, want %q", tt.device, got, tt.want)
		}
	}
}

func TestPublish(t *testing.T) {
	client := &fakeClient{connected: true}
	cfg := DefaultConfig()
	cfg.QOS = 1
	cfg.Retain = true
	p := newPublisher(cfg, client, zap.NewNop())

	if err := p.Publish("roof", mpptRecord(t)); err != nil {
		t.Fatal(err)
	}
	if len(client.sent) != 1 {
		t.Fatalf("sent %d messages", len(client.sent))
	}
	msg := client.sent[0]
	if msg.topic != "vedirect/roof/solar_charger" || msg.qos != 1 || !msg.retain {
		t.Errorf("sent = %+v", msg)
	}

	var out struct {
		Device  string         `json:"device"`
		Class   string         `json:"class"`
		Summary map[string]any `json:"summary"`
		Record  map[string]any `json:"record"`
	}
	if err := json.Unmarshal(msg.payload, &out); err != nil {
		t.Fatal(err)
	}
	if out.Device != "roof" || out.Class != "solar_charger" {
		t.Errorf("payload = %+v", out)
	}
	if out.Record["panelPower"] != 120.0 || out.Summary["voltage"] != 13.5 {
		t.Errorf("record = %v, summary = %v", out.Record, out.Summary)
	}

	p.Close()
	if !client.disconnected {
		t.Error("Close did not disconnect")
	}
}

func TestPublishErrors(t *testing.T) {
	p := newPublisher(DefaultConfig(), &fakeClient{}, zap.NewNop())
	if err := p.Publish("roof", mpptRecord(t)); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected publish = %v", err)
	}

	broker := errors.New("broker rejected")
	p = newPublisher(DefaultConfig(), &fakeClient{connected: true, err: broker}, zap.NewNop())
	if err := p.Publish("roof", mpptRecord(t)); !errors.Is(err, broker) {
		t.Errorf("failed publish = %v", err)
	}
}
