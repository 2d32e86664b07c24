package mailparse

import (
	"strings"
	"testing"
)

const multipartEML = "From: PayPal Support <support@paypa1-secure.tk>\r\n" +
	"To: victim@example.com\r\n" +
	"Subject: Verify your account\r\n" +
	"Message-ID: <abc123@paypa1-secure.tk>\r\n" +
	"Date: Mon, 05 Aug 2024 10:00:00 +0000\r\n" +
	"Received: from mail.paypa1-secure.tk (192.168.1.5) by mx.example.com\r\n" +
	"Received: from relay.example.net by mail.paypa1-secure.tk\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=\"utf-8\"\r\n" +
	"\r\n" +
	"Please  verify   your account\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html; charset=\"utf-8\"\r\n" +
	"\r\n" +
	"<html><body><p>Click <a href=\"http://paypa1-secure.tk/login\">here</a></p><script>evil()</script></body></html>\r\n" +
	"--b1--\r\n"

func TestNormalizeMultipart(t *testing.T) {
	text, headers := Normalize([]byte(multipartEML))

	if headers == nil {
		t.Fatal("expected a header view for a well-formed message")
	}
	if !strings.Contains(text, "Please verify your account") {
		t.Errorf("plain part missing or whitespace not collapsed: %q", text)
	}
	if !strings.Contains(text, "Click here") {
		t.Errorf("html part not converted to text: %q", text)
	}
	if strings.Contains(text, "<a") || strings.Contains(text, "evil()") {
		t.Errorf("html tags or script content leaked into text: %q", text)
	}
	if strings.Contains(text, "  ") {
		t.Errorf("whitespace runs not collapsed: %q", text)
	}
}

func TestNormalizeHeaderView(t *testing.T) {
	_, headers := Normalize([]byte(multipartEML))
	if headers == nil {
		t.Fatal("expected a header view")
	}

	// Case-insensitive lookup
	if got := headers.Get("subject"); got != "Verify your account" {
		t.Errorf("Get(subject) = %q", got)
	}
	if got := headers.Get("SUBJECT"); got != "Verify your account" {
		t.Errorf("Get(SUBJECT) = %q", got)
	}

	// Repeatable headers
	received := headers.Values("Received")
	if len(received) != 2 {
		t.Fatalf("Values(Received) = %d entries, want 2", len(received))
	}
	if !strings.Contains(received[0], "192.168.1.5") {
		t.Errorf("Received headers out of message order: %q", received[0])
	}

	if !headers.Has("Message-ID") {
		t.Error("Has(Message-ID) should be true")
	}
	if headers.Has("X-Mailer") {
		t.Error("Has(X-Mailer) should be false")
	}
}

func TestNormalizeMalformedFallsBack(t *testing.T) {
	raw := []byte("this is not a mime message, just text with a url http://example.com")
	text, headers := Normalize(raw)

	if headers != nil {
		t.Error("malformed input should yield a nil header view")
	}
	if !strings.Contains(text, "http://example.com") {
		t.Errorf("fallback decode lost content: %q", text)
	}
}

func TestNormalizeInvalidBytesNeverFails(t *testing.T) {
	raw := []byte{0xff, 0xfe, 'h', 'i', 0xef, 0x20, 'x'}
	text, _ := Normalize(raw)
	if !strings.Contains(text, "hi") {
		t.Errorf("permissive decode should preserve ASCII content: %q", text)
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello   world \n\t again ", "hello world again"},
		{"", ""},
		{"single", "single"},
	}
	for _, tt := range tests {
		if got := NormalizeText(tt.in); got != tt.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractHTMLText(t *testing.T) {
	doc := `<html><head><style>p{color:red}</style></head><body><h1>Account  Suspended</h1><p>Act now</p></body></html>`
	got := NormalizeText(ExtractHTMLText(doc))
	if got != "Account Suspended Act now" {
		t.Errorf("ExtractHTMLText = %q", got)
	}
}

func TestHeaderViewNilSafe(t *testing.T) {
	var view *HeaderView
	if view.Get("From") != "" {
		t.Error("nil view Get should return empty")
	}
	if view.Values("Received") != nil {
		t.Error("nil view Values should return nil")
	}
	if view.Len() != 0 {
		t.Error("nil view Len should be 0")
	}
}
