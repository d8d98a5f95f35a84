// Package mailer is a fluent email builder with placeholder substitution, a
// registry of named transports and a single-shot send pipeline.
//
// A Builder composes one message through chained calls. MIME composition is
// done by gopkg.in/mail.v2; delivery is done by a Transport picked per send.
//
// # Basic Usage
//
//	b, err := mailer.New(mailer.DefaultConfig(),
//		mailer.WithSMTPAuth("smtp.example.com", "587", "user", "secret"),
//		mailer.WithFrom("noreply@example.com", "Example"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
//	n, err := b.Subject("Welcome").
//		To("ana@example.com", "Ana").
//		HTML("<p>Hi {name}</p>", mailer.Params{"name": "Ana"}).
//		Attach("/tmp/terms.pdf").
//		Deliver(ctx)
//
// # Choosing a transport
//
// Each send resolves exactly one transport. A selector passed with Via wins,
// then the transport set with Builder.UseTransport, then the configured
// mail.driver:
//
//	b.Deliver(ctx, mailer.Via(mailer.UseDriver("mailgun")))
//	b.Deliver(ctx, mailer.Via(mailer.UseTransport(t)))
//	b.Deliver(ctx, mailer.Via(mailer.UseFactory(func(r *mailer.Registry) (mailer.Transport, error) {
//		return r.Driver("smtp")
//	})))
//
// # Errors
//
// Deliver returns a *MailerError naming the failed stage. TrySend never
// returns an error; it reports through SendResult, LastError and Fails.
// Send picks one of the two from mail.debug.
//
// # Supported Transports
//
//   - SMTP (emersion/go-smtp)
//   - sendmail
//   - AWS SES
//   - SendGrid
//   - Mailgun
//   - log and memory, for development and tests
package mailer
