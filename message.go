package mailer

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/mail.v2"

	"github.com/lattiq/fluentmailer/internal/core"
)

// Content types set by the body helpers.
const (
	ContentHTML  = "text/html"
	ContentPlain = "text/plain"
)

const (
	defaultCharset    = "UTF-8"
	defaultLineLength = 998
)

// Message is the in-flight message a Builder composes. It is rendered to
// RFC 5322 bytes with gopkg.in/mail.v2 at dispatch time.
type Message struct {
	subject       string
	from          Address
	to            []Address
	cc            []Address
	bcc           []Address
	replyTo       []Address
	contentType   string
	body          string
	charset       string
	attachments   []*Attachment
	headers       core.HeaderSet
	lineLength    int
	priority      Priority
	readReceiptTo string
	signer        *SMimeSigner
	messageID     string
	date          time.Time
}

// NewMessage returns an empty message carrying the defaults from cfg.
func NewMessage(cfg MailConfig) *Message {
	m := &Message{
		from:        cfg.From,
		contentType: cfg.ContentType,
		charset:     cfg.Charset,
		lineLength:  cfg.LineLength,
	}
	if m.contentType == "" {
		m.contentType = ContentPlain
	}
	if m.charset == "" {
		m.charset = defaultCharset
	}
	if m.lineLength <= 0 {
		m.lineLength = defaultLineLength
	}
	return m
}

// Field accessors, mainly for MessageMutator implementations.
func (m *Message) Subject() string           { return m.subject }
func (m *Message) SetSubject(s string)       { m.subject = s }
func (m *Message) From() Address             { return m.from }
func (m *Message) SetFrom(a Address)         { m.from = a }
func (m *Message) To() []Address             { return cloneAddresses(m.to) }
func (m *Message) Cc() []Address             { return cloneAddresses(m.cc) }
func (m *Message) Bcc() []Address            { return cloneAddresses(m.bcc) }
func (m *Message) ReplyTo() []Address        { return cloneAddresses(m.replyTo) }
func (m *Message) ContentType() string       { return m.contentType }
func (m *Message) Body() string              { return m.body }
func (m *Message) Charset() string           { return m.charset }
func (m *Message) SetCharset(c string)       { m.charset = c }
func (m *Message) LineLength() int           { return m.lineLength }
func (m *Message) SetLineLength(n int)       { m.lineLength = n }
func (m *Message) Priority() Priority        { return m.priority }
func (m *Message) SetPriority(p Priority)    { m.priority = p }
func (m *Message) ReadReceiptTo() string     { return m.readReceiptTo }
func (m *Message) SetReadReceiptTo(a string) { m.readReceiptTo = a }
func (m *Message) Signer() *SMimeSigner      { return m.signer }
func (m *Message) SetDate(t time.Time)       { m.date = t }

// SetTo replaces the recipient list.
func (m *Message) SetTo(addrs ...Address) {
	m.to = nil
	for _, a := range addrs {
		m.to = addAddress(m.to, a)
	}
}

// AddTo appends a recipient unless the address is already present.
func (m *Message) AddTo(a Address) { m.to = addAddress(m.to, a) }

// AddCc appends a carbon copy recipient.
func (m *Message) AddCc(a Address) { m.cc = addAddress(m.cc, a) }

// AddBcc appends a blind carbon copy recipient.
func (m *Message) AddBcc(a Address) { m.bcc = addAddress(m.bcc, a) }

// AddReplyTo appends a Reply-To address.
func (m *Message) AddReplyTo(a Address) { m.replyTo = addAddress(m.replyTo, a) }

// SetBody replaces the body and its content type.
func (m *Message) SetBody(contentType, content string) {
	m.contentType = contentType
	m.body = content
}

// SetHeader sets a custom header, replacing any header with the same name.
func (m *Message) SetHeader(name, value string) { m.headers.Set(name, value) }

// AddHeader appends a custom header.
func (m *Message) AddHeader(name, value string) { m.headers.Add(name, value) }

// RemoveHeader drops every custom header with the given name.
func (m *Message) RemoveHeader(name string) { m.headers.Del(name) }

// Attach appends a; the message keeps the pointer.
func (m *Message) Attach(a *Attachment) { m.attachments = append(m.attachments, a) }

// Attachments returns the attachments in the order they were added.
func (m *Message) Attachments() []*Attachment {
	out := make([]*Attachment, len(m.attachments))
	copy(out, m.attachments)
	return out
}

// AttachSigner makes Render sign the message.
func (m *Message) AttachSigner(s *SMimeSigner) { m.signer = s }

// MessageID returns the Message-ID, generating one on first use.
func (m *Message) MessageID() string {
	if m.messageID == "" {
		m.messageID = newMessageID(m.from.Email)
	}
	return m.messageID
}

// SetMessageID overrides the generated Message-ID.
func (m *Message) SetMessageID(id string) {
	if id != "" && !strings.HasPrefix(id, "<") {
		id = "<" + id + ">"
	}
	m.messageID = id
}

// Recipients returns every To, Cc and Bcc address once, in that order.
func (m *Message) Recipients() []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range [][]Address{m.to, m.cc, m.bcc} {
		for _, a := range list {
			key := strings.ToLower(a.Email)
			if a.Email == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, a.Email)
		}
	}
	return out
}

// Headers returns every header the rendered message carries, in order.
func (m *Message) Headers() []Header {
	var hs core.HeaderSet
	hs.Set("Message-ID", m.MessageID())
	hs.Set("Date", m.dateOrNow().Format(time.RFC1123Z))
	hs.Set("Subject", m.subject)
	if !m.from.IsZero() {
		hs.Set("From", m.from.String())
	}
	if len(m.replyTo) > 0 {
		hs.Set("Reply-To", joinAddresses(m.replyTo))
	}
	if len(m.to) > 0 {
		hs.Set("To", joinAddresses(m.to))
	}
	if len(m.cc) > 0 {
		hs.Set("Cc", joinAddresses(m.cc))
	}
	hs.Set("MIME-Version", "1.0")
	hs.Set("Content-Type", m.contentType+"; charset="+m.charset)
	seen := make(map[string]bool)
	for _, h := range m.extraHeaders() {
		key := strings.ToLower(h.Name)
		if _, ok := hs.Get(h.Name); ok && !seen[key] {
			hs.Set(h.Name, h.Value)
		} else {
			hs.Add(h.Name, h.Value)
		}
		seen[key] = true
	}
	return hs.All()
}

// HeadersString returns Headers serialized with CRLF line endings.
func (m *Message) HeadersString() string {
	var sb strings.Builder
	for _, h := range m.Headers() {
		sb.WriteString(h.Name)
		sb.WriteString(": ")
		sb.WriteString(h.Value)
		sb.WriteString("\r\n")
	}
	return sb.String()
}

// extraHeaders returns the headers beyond addressing and MIME structure:
// priority, read receipt, X-Mailer and custom headers. A custom header
// replaces a generated one with the same name.
func (m *Message) extraHeaders() []Header {
	custom := m.headers.All()
	overridden := func(name string) bool {
		for _, h := range custom {
			if strings.EqualFold(h.Name, name) {
				return true
			}
		}
		return false
	}

	var out []Header
	if m.priority != 0 && !overridden("X-Priority") {
		out = append(out, Header{Name: "X-Priority", Value: m.priority.HeaderValue()})
	}
	if m.readReceiptTo != "" && !overridden("Disposition-Notification-To") {
		out = append(out, Header{Name: "Disposition-Notification-To", Value: m.readReceiptTo})
	}
	if !overridden("X-Mailer") {
		out = append(out, Header{Name: "X-Mailer", Value: mailerHeader()})
	}
	return append(out, custom...)
}

// Render composes the message into RFC 5322 bytes, signing it when a signer
// is attached.
func (m *Message) Render() ([]byte, error) {
	gm := mail.NewMessage(mail.SetCharset(m.charset), mail.SetEncoding(m.bodyEncoding()))

	if !m.from.IsZero() {
		gm.SetAddressHeader("From", m.from.Email, m.from.Name)
	}
	setAddressList(gm, "Reply-To", m.replyTo)
	setAddressList(gm, "To", m.to)
	setAddressList(gm, "Cc", m.cc)
	gm.SetHeader("Subject", m.subject)
	gm.SetHeader("Message-ID", m.MessageID())
	gm.SetDateHeader("Date", m.dateOrNow())

	grouped := make(map[string][]string)
	var order []string
	for _, h := range m.extraHeaders() {
		if _, ok := grouped[h.Name]; !ok {
			order = append(order, h.Name)
		}
		grouped[h.Name] = append(grouped[h.Name], h.Value)
	}
	for _, name := range order {
		gm.SetHeader(name, grouped[name]...)
	}

	gm.SetBody(m.contentType, m.body)

	for _, a := range m.attachments {
		a := a
		disposition := "attachment"
		if a.Inline {
			disposition = "inline"
		}
		header := map[string][]string{
			"Content-Type":        {a.DetectContentType() + `; name="` + a.Filename + `"`},
			"Content-Disposition": {disposition + `; filename="` + a.Filename + `"`},
		}
		if a.Inline && a.ContentID != "" {
			header["Content-ID"] = []string{"<" + a.ContentID + ">"}
		}
		settings := []mail.FileSetting{
			mail.Rename(a.Filename),
			mail.SetHeader(header),
			mail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(a.Data)
				return err
			}),
		}
		if a.Inline {
			gm.Embed(a.Filename, settings...)
		} else {
			gm.Attach(a.Filename, settings...)
		}
	}

	var buf bytes.Buffer
	if _, err := gm.WriteTo(&buf); err != nil {
		return nil, err
	}

	if m.signer != nil {
		return m.signer.Sign(buf.Bytes())
	}
	return buf.Bytes(), nil
}

// envelope builds what the transport receives.
func (m *Message) envelope(raw []byte) *Envelope {
	atts := make([]Attachment, 0, len(m.attachments))
	for _, a := range m.attachments {
		atts = append(atts, *a)
	}
	return &Envelope{
		From:        m.from.Email,
		Recipients:  m.Recipients(),
		Raw:         raw,
		Signed:      m.signer != nil,
		Sender:      m.from,
		To:          m.To(),
		CC:          m.Cc(),
		BCC:         m.Bcc(),
		ReplyTo:     m.ReplyTo(),
		Subject:     m.subject,
		ContentType: m.contentType,
		Body:        m.body,
		Headers:     m.extraHeaders(),
		Attachments: atts,
	}
}

// bodyEncoding picks quoted-printable when the body is not 7-bit clean or has
// a line longer than the line length.
func (m *Message) bodyEncoding() mail.Encoding {
	for _, r := range m.body {
		if r >= 0x80 {
			return mail.QuotedPrintable
		}
	}
	for _, line := range strings.Split(m.body, "\n") {
		if len(strings.TrimSuffix(line, "\r")) > m.lineLength {
			return mail.QuotedPrintable
		}
	}
	return mail.Unencoded
}

func (m *Message) dateOrNow() time.Time {
	if m.date.IsZero() {
		return time.Now()
	}
	return m.date
}

// renew gives the message a fresh Message-ID and date for its next send.
func (m *Message) renew() {
	m.messageID = ""
	m.date = time.Time{}
}

func newMessageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return "<" + uuid.NewString() + "@" + domain + ">"
}

func setAddressList(gm *mail.Message, field string, list []Address) {
	if len(list) == 0 {
		return
	}
	values := make([]string, 0, len(list))
	for _, a := range list {
		values = append(values, gm.FormatAddress(a.Email, a.Name))
	}
	gm.SetHeader(field, values...)
}

func addAddress(list []Address, a Address) []Address {
	for i, existing := range list {
		if strings.EqualFold(existing.Email, a.Email) {
			list[i] = a
			return list
		}
	}
	return append(list, a)
}

func cloneAddresses(list []Address) []Address {
	if list == nil {
		return nil
	}
	out := make([]Address, len(list))
	copy(out, list)
	return out
}

func joinAddresses(list []Address) string {
	parts := make([]string, 0, len(list))
	for _, a := range list {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}
