package telephony

import (
	"strings"
	"testing"
)

func TestConnectStreamTwiML(t *testing.T) {
	body, err := ConnectStreamTwiML("voice.example.com")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	got := string(body)
	if !strings.HasPrefix(got, "<?xml") {
		t.Fatalf("missing xml header: %q", got)
	}
	if !strings.Contains(got, `<Stream url="wss://voice.example.com/connection">`) {
		t.Fatalf("missing stream url: %q", got)
	}
	if !strings.Contains(got, "<Connect>") {
		t.Fatalf("missing connect verb: %q", got)
	}
}

func TestSayTwiML(t *testing.T) {
	body, err := SayTwiML("Sorry, an error occurred. Goodbye.")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(body), "<Say>Sorry, an error occurred. Goodbye.</Say>") {
		t.Fatalf("say=%q", body)
	}
}
