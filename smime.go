package mailer

import (
	"bytes"
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.mozilla.org/pkcs7"
)

// SMimeSigner signs rendered messages as multipart/signed with a detached
// PKCS#7 signature.
type SMimeSigner struct {
	cert  *x509.Certificate
	key   crypto.PrivateKey
	chain []*x509.Certificate
}

// NewSMimeSigner returns a signer without credentials. Configure it with
// SetCertificate, LoadPEM or LoadFiles.
func NewSMimeSigner() *SMimeSigner {
	return &SMimeSigner{}
}

// SetCertificate sets the signing certificate, its private key and any
// intermediate certificates to embed.
func (s *SMimeSigner) SetCertificate(cert *x509.Certificate, key crypto.PrivateKey, chain ...*x509.Certificate) *SMimeSigner {
	s.cert = cert
	s.key = key
	s.chain = chain
	return s
}

// LoadPEM reads a PEM certificate chain and private key.
func (s *SMimeSigner) LoadPEM(certPEM, keyPEM []byte) error {
	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return fmt.Errorf("loading signing key pair: %w", err)
	}
	return s.setPair(pair)
}

// LoadFiles reads a PEM certificate chain and private key from disk.
func (s *SMimeSigner) LoadFiles(certFile, keyFile string) error {
	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return fmt.Errorf("loading signing key pair: %w", err)
	}
	return s.setPair(pair)
}

func (s *SMimeSigner) setPair(pair tls.Certificate) error {
	certs := make([]*x509.Certificate, 0, len(pair.Certificate))
	for _, der := range pair.Certificate {
		c, err := x509.ParseCertificate(der)
		if err != nil {
			return fmt.Errorf("parsing certificate: %w", err)
		}
		certs = append(certs, c)
	}
	if len(certs) == 0 {
		return errors.New("no certificate in key pair")
	}
	s.SetCertificate(certs[0], pair.PrivateKey, certs[1:]...)
	return nil
}

// Ready reports whether a certificate and key are set.
func (s *SMimeSigner) Ready() bool {
	return s.cert != nil && s.key != nil
}

// Sign wraps raw into a multipart/signed message. The Content-* headers move
// into the signed part; every other header stays on the outer message.
func (s *SMimeSigner) Sign(raw []byte) ([]byte, error) {
	if !s.Ready() {
		return nil, errors.New("smime: signer has no certificate")
	}

	head, body, ok := bytes.Cut(raw, []byte("\r\n\r\n"))
	if !ok {
		return nil, errors.New("smime: message has no header terminator")
	}

	var outer, inner []string
	for _, field := range splitHeaderFields(string(head)) {
		name := strings.ToLower(strings.TrimSpace(field[:strings.IndexByte(field+":", ':')]))
		switch {
		case strings.HasPrefix(name, "content-"):
			inner = append(inner, field)
		case name == "mime-version":
		default:
			outer = append(outer, field)
		}
	}

	var entity bytes.Buffer
	for _, field := range inner {
		entity.WriteString(field)
		entity.WriteString("\r\n")
	}
	entity.WriteString("\r\n")
	entity.Write(body)

	sd, err := pkcs7.NewSignedData(entity.Bytes())
	if err != nil {
		return nil, fmt.Errorf("smime: %w", err)
	}
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	if err := sd.AddSigner(s.cert, s.key, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, fmt.Errorf("smime: adding signer: %w", err)
	}
	for _, c := range s.chain {
		sd.AddCertificate(c)
	}
	sd.Detach()
	signature, err := sd.Finish()
	if err != nil {
		return nil, fmt.Errorf("smime: signing: %w", err)
	}

	boundary := strings.ReplaceAll(uuid.NewString(), "-", "")

	var out bytes.Buffer
	for _, field := range outer {
		out.WriteString(field)
		out.WriteString("\r\n")
	}
	out.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&out, "Content-Type: multipart/signed; protocol=\"application/pkcs7-signature\"; micalg=sha-256; boundary=\"%s\"\r\n", boundary)
	out.WriteString("\r\nThis is an S/MIME signed message\r\n")
	fmt.Fprintf(&out, "--%s\r\n", boundary)
	out.Write(entity.Bytes())
	fmt.Fprintf(&out, "\r\n--%s\r\n", boundary)
	out.WriteString("Content-Type: application/pkcs7-signature; name=\"smime.p7s\"\r\n")
	out.WriteString("Content-Transfer-Encoding: base64\r\n")
	out.WriteString("Content-Disposition: attachment; filename=\"smime.p7s\"\r\n\r\n")
	writeBase64Lines(&out, signature)
	fmt.Fprintf(&out, "--%s--\r\n", boundary)

	return out.Bytes(), nil
}

// splitHeaderFields splits a header block into unfolded-per-field strings,
// keeping continuation lines attached to their field.
func splitHeaderFields(head string) []string {
	var fields []string
	for _, line := range strings.Split(head, "\r\n") {
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && len(fields) > 0 {
			fields[len(fields)-1] += "\r\n" + line
			continue
		}
		fields = append(fields, line)
	}
	return fields
}

func writeBase64Lines(buf *bytes.Buffer, data []byte) {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		buf.WriteString(encoded[:76])
		buf.WriteString("\r\n")
		encoded = encoded[76:]
	}
	buf.WriteString(encoded)
	buf.WriteString("\r\n")
}
