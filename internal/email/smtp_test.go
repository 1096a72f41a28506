package email

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
)

func TestBuildMIME_plainText(t *testing.T) {
	raw, err := buildMIME("noreply@example.org", Message{To: "donor@example.org", Subject: "Hi", Body: "hello"})
	if err != nil {
		t.Fatalf("buildMIME: %v", err)
	}
	m, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got := m.Header.Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Errorf("Content-Type: %q", got)
	}
	body, _ := io.ReadAll(m.Body)
	if string(body) != "hello" {
		t.Errorf("body: %q", body)
	}
}

func TestBuildMIME_attachment(t *testing.T) {
	pdf := bytes.Repeat([]byte("%PDF-1.3 test "), 20)
	raw, err := buildMIME("noreply@example.org", Message{
		To:      "donor@example.org",
		Subject: "Donation Receipt - Payment pay_1",
		Body:    "Dear Asha,",
		Attachments: []Attachment{
			{Filename: "receipt-pay_1.pdf", ContentType: "application/pdf", Data: pdf},
		},
	})
	if err != nil {
		t.Fatalf("buildMIME: %v", err)
	}

	m, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	subject, err := new(mime.WordDecoder).DecodeHeader(m.Header.Get("Subject"))
	if err != nil || subject != "Donation Receipt - Payment pay_1" {
		t.Errorf("Subject: %q (%v)", subject, err)
	}

	mediaType, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/mixed" {
		t.Fatalf("Content-Type: %q (%v)", mediaType, err)
	}

	mr := multipart.NewReader(m.Body, params["boundary"])

	text, err := mr.NextPart()
	if err != nil {
		t.Fatalf("body part: %v", err)
	}
	b, _ := io.ReadAll(text)
	if string(b) != "Dear Asha," {
		t.Errorf("body part: %q", b)
	}

	att, err := mr.NextPart()
	if err != nil {
		t.Fatalf("attachment part: %v", err)
	}
	if att.FileName() != "receipt-pay_1.pdf" {
		t.Errorf("filename: %q", att.FileName())
	}
	enc, _ := io.ReadAll(att)
	for _, line := range strings.Split(strings.TrimSpace(string(enc)), "\r\n") {
		if len(line) > 76 {
			t.Fatalf("base64 line longer than 76: %d", len(line))
		}
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(enc), "\r\n", ""))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded, pdf) {
		t.Error("attachment bytes differ")
	}

	if _, err := mr.NextPart(); err != io.EOF {
		t.Errorf("expected two parts, got extra: %v", err)
	}
}
