package proto

import (
	"encoding/json"
	"testing"
	"time"
)

func push(t *testing.T, event, data string) Push {
	t.Helper()
	p := Push{Event: event}
	if data != "" {
		p.Data = json.RawMessage(data)
	}
	return p
}

func TestDecodePush_Registered(t *testing.T) {
	p := push(t, PushRegistered, `{"clientId":"c-42","points":1500,"preferenceActiveUntil":"2026-08-30T12:00:00Z"}`)

	ev, err := DecodePush(p)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	reg, ok := ev.(Registered)
	if !ok {
		t.Fatalf("expected Registered, got %T", ev)
	}
	if reg.ClientID != "c-42" {
		t.Errorf("clientId = %q, want c-42", reg.ClientID)
	}
	if reg.Points != 1500 {
		t.Errorf("points = %d, want 1500", reg.Points)
	}
	want := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if reg.PreferenceActiveUntil == nil || !reg.PreferenceActiveUntil.Equal(want) {
		t.Errorf("preferenceActiveUntil = %v, want %v", reg.PreferenceActiveUntil, want)
	}
}

func TestDecodePush_RegisteredNullExpiry(t *testing.T) {
	p := push(t, PushRegistered, `{"clientId":"c-1","points":0,"preferenceActiveUntil":null}`)

	ev, err := DecodePush(p)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	reg := ev.(Registered)
	if reg.PreferenceActiveUntil != nil {
		t.Errorf("expected nil expiry, got %v", reg.PreferenceActiveUntil)
	}
}

func TestDecodePush_Matched(t *testing.T) {
	p := push(t, PushMatched, `{"partnerGender":"female","distance":3.7}`)

	ev, err := DecodePush(p)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	m := ev.(Matched)
	if m.PartnerGender != "female" || m.Distance != 3.7 {
		t.Errorf("got %+v", m)
	}
}

func TestDecodePush_PayloadlessEvents(t *testing.T) {
	for _, name := range []string{PushEnqueuedToWaiting, PushMatchEnded, PushPreferencesUpdated} {
		ev, err := DecodePush(push(t, name, ""))
		if err != nil {
			t.Fatalf("%s: decode failed: %v", name, err)
		}
		if ev.PushName() != name {
			t.Errorf("%s: decoded to %s", name, ev.PushName())
		}
	}
}

func TestDecodePush_ReceiveImageMessage(t *testing.T) {
	p := push(t, PushReceiveImageMessage,
		`{"senderId":"c-2","imageId":"img-1","thumbnailUrl":"/thumbs/img-1.jpg","imageUrl":"/images/img-1.jpg","timestamp":"2026-08-30T09:30:00Z"}`)

	ev, err := DecodePush(p)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	img := ev.(ReceiveImageMessage)
	if img.ImageID != "img-1" || img.ThumbnailURL != "/thumbs/img-1.jpg" {
		t.Errorf("got %+v", img)
	}
}

func TestDecodePush_UnknownEvent(t *testing.T) {
	if _, err := DecodePush(push(t, "SomethingNew", `{}`)); err == nil {
		t.Fatal("expected error for unknown push")
	}
}

func TestDecodePush_MalformedPayload(t *testing.T) {
	if _, err := DecodePush(push(t, PushMatched, `{"distance":"far"}`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestNewInvocation(t *testing.T) {
	inv, err := NewInvocation(TargetSendMessage, SendMessageArgs{Text: "hi"})
	if err != nil {
		t.Fatalf("NewInvocation failed: %v", err)
	}
	if inv.Target != TargetSendMessage {
		t.Errorf("target = %q", inv.Target)
	}
	if string(inv.Data) != `{"text":"hi"}` {
		t.Errorf("data = %s", inv.Data)
	}
}

func TestNewInvocation_NilArgs(t *testing.T) {
	inv, err := NewInvocation(TargetEndChat, nil)
	if err != nil {
		t.Fatalf("NewInvocation failed: %v", err)
	}
	if inv.Data != nil {
		t.Errorf("expected empty data, got %s", inv.Data)
	}
}

func TestRegisterArgs_OmitsEmptyIdentity(t *testing.T) {
	inv, err := NewInvocation(TargetRegister, RegisterArgs{Gender: "male", PreferredGender: "any"})
	if err != nil {
		t.Fatalf("NewInvocation failed: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(inv.Data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := raw["clientId"]; present {
		t.Error("empty clientId should be omitted on first registration")
	}
	if _, present := raw["preferenceActiveUntil"]; present {
		t.Error("nil expiry should be omitted")
	}
}
