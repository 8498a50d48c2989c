package smtpmail

import (
	"bytes"
	"context"
	"testing"

	"github.com/latrastienda/tienda/internal/application/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() notification.Message {
	return notification.Message{
		To:      []string{"ana@example.com"},
		ReplyTo: "contabilidad@example.com",
		Subject: "Pedido 1",
		HTML:    "<p>Gracias</p>",
		Attachments: []notification.Attachment{
			{Filename: "factura_1.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.3")},
		},
	}
}

func TestBuildMessage(t *testing.T) {
	m := New(Config{Host: "localhost", Port: 2525, From: "Tienda <pedidos@example.com>"})

	mm, err := m.build(sample())
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = mm.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()

	assert.Contains(t, raw, "From: Tienda <pedidos@example.com>")
	assert.Contains(t, raw, "To: ana@example.com")
	assert.Contains(t, raw, "Reply-To: contabilidad@example.com")
	assert.Contains(t, raw, "Subject: Pedido 1")
	assert.Contains(t, raw, "Content-Type: text/html")
	assert.Contains(t, raw, "Content-Type: application/pdf")
	assert.Contains(t, raw, `filename="factura_1.pdf"`)
}

func TestBuildFallsBackToConfiguredReplyTo(t *testing.T) {
	m := New(Config{Host: "localhost", Port: 2525, From: "pedidos@example.com", ReplyTo: "tienda@example.com"})
	msg := sample()
	msg.ReplyTo = ""

	mm, err := m.build(msg)
	require.NoError(t, err)
	assert.Equal(t, []string{"tienda@example.com"}, mm.GetHeader("Reply-To"))
}

func TestBuildRequiresRecipient(t *testing.T) {
	m := New(Config{Host: "localhost", Port: 2525})
	_, err := m.build(notification.Message{Subject: "x"})
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestSendHonoursCanceledContext(t *testing.T) {
	m := New(Config{Host: "localhost", Port: 2525})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, sample()), context.Canceled)
}

func TestLogMailer(t *testing.T) {
	m := NewLogMailer(nil)
	require.NoError(t, m.Send(context.Background(), sample()))
	assert.ErrorIs(t, m.Send(context.Background(), notification.Message{}), ErrNoRecipients)
}
