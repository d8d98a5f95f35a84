package mailer

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"io"
	"math/big"
	"mime"
	"mime/multipart"
	netmail "net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mozilla.org/pkcs7"
)

func newSigningCert(t *testing.T) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:   big.NewInt(1),
		Subject:        pkix.Name{CommonName: "Example Sender"},
		EmailAddresses: []string{"noreply@example.com"},
		NotBefore:      time.Now().Add(-time.Hour),
		NotAfter:       time.Now().Add(time.Hour),
		KeyUsage:       x509.KeyUsageDigitalSignature,
		ExtKeyUsage:    []x509.ExtKeyUsage{x509.ExtKeyUsageEmailProtection},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert, key
}

func TestSMimeSigner_SignedMessageVerifies(t *testing.T) {
	t.Parallel()

	cert, key := newSigningCert(t)
	b, mem := newTestBuilder(t)

	b.Subject("Signed").
		To("ana@example.com").
		Text("This message is signed.", nil).
		SignCertificate(SignerConfigurerFunc(func(s *SMimeSigner) error {
			s.SetCertificate(cert, key)
			return nil
		}))

	_, err := b.Deliver(context.Background())
	require.NoError(t, err)

	assert.True(t, mem.Last().Signed)
	raw := mem.Last().Raw
	msg, err := netmail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "Signed", msg.Header.Get("Subject"))

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/signed", mediaType)
	assert.Equal(t, "application/pkcs7-signature", params["protocol"])
	assert.Equal(t, "sha-256", params["micalg"])

	boundary := params["boundary"]
	require.NotEmpty(t, boundary)

	open := []byte("--" + boundary + "\r\n")
	start := bytes.Index(raw, open)
	require.GreaterOrEqual(t, start, 0)
	start += len(open)
	end := bytes.Index(raw[start:], []byte("\r\n--"+boundary+"\r\n"))
	require.Greater(t, end, 0)
	entity := raw[start : start+end]
	assert.True(t, bytes.HasPrefix(entity, []byte("Content-")), string(entity))
	assert.Contains(t, string(entity), "Content-Type: text/plain; charset=UTF-8\r\n")
	assert.NotContains(t, string(entity), "Subject:")

	mr := multipart.NewReader(msg.Body, boundary)
	_, err = mr.NextPart()
	require.NoError(t, err)
	sigPart, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "application/pkcs7-signature; name=\"smime.p7s\"", sigPart.Header.Get("Content-Type"))

	encoded, err := io.ReadAll(sigPart)
	require.NoError(t, err)
	sig, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(encoded), "\r\n", ""))
	require.NoError(t, err)

	p7, err := pkcs7.Parse(sig)
	require.NoError(t, err)
	p7.Content = entity
	require.NoError(t, p7.Verify())
	assert.Equal(t, cert.Raw, p7.GetOnlySigner().Raw)

	p7.Content = append([]byte(nil), entity...)
	p7.Content[len(p7.Content)-1] ^= 0x01
	assert.Error(t, p7.Verify())
}

func TestSMimeSigner_LoadPEM(t *testing.T) {
	t.Parallel()

	cert, key := newSigningCert(t)
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})

	s := NewSMimeSigner()
	assert.False(t, s.Ready())
	require.NoError(t, s.LoadPEM(certPEM, keyPEM))
	assert.True(t, s.Ready())

	assert.Error(t, NewSMimeSigner().LoadPEM([]byte("junk"), keyPEM))
}

func TestSMimeSigner_NotReady(t *testing.T) {
	t.Parallel()

	_, err := NewSMimeSigner().Sign([]byte("Subject: x\r\n\r\nbody"))
	assert.Error(t, err)

	cert, key := newSigningCert(t)
	_, err = NewSMimeSigner().SetCertificate(cert, key).Sign([]byte("no header terminator"))
	assert.Error(t, err)
}

func TestBuilder_SignCertificate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("nil configurer is ignored", func(t *testing.T) {
		b, _ := newTestBuilder(t)
		b.SignCertificate(nil)
		assert.Nil(t, b.Message().Signer())
	})

	t.Run("configure error is deferred to send", func(t *testing.T) {
		b, _ := newTestBuilder(t)
		missing := errors.New("no key material")
		b.To("ana@example.com").SignCertificate(SignerConfigurerFunc(func(*SMimeSigner) error {
			return missing
		}))

		_, err := b.Deliver(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, missing)

		var me *MailerError
		require.True(t, errors.As(err, &me))
		assert.Equal(t, StageComposing, me.Stage)
	})

	t.Run("empty signer fails at dispatch", func(t *testing.T) {
		b, mem := newTestBuilder(t)
		b.To("ana@example.com").SignCertificate(SignerConfigurerFunc(func(*SMimeSigner) error {
			return nil
		}))

		_, err := b.Deliver(ctx)
		require.Error(t, err)
		var me *MailerError
		require.True(t, errors.As(err, &me))
		assert.Equal(t, StageDispatching, me.Stage)
		assert.Nil(t, mem.Last())
	})
}
