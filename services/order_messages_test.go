package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderMessages(t *testing.T) {
	m := newMarketplace(t, OrderServiceOptions{})
	barong := m.product(t, m.seller, "Barong", "100", 5)
	ctx := context.Background()
	order, err := m.service.CreateOrder(ctx, actorOf(m.customer), orderInput(line(barong, 1)))
	require.NoError(t, err)
	m.sink.reset()

	first, err := m.service.PostMessage(ctx, actorOf(m.customer), order.ID, "  Can you ship by Friday?  ")
	require.NoError(t, err)
	assert.Equal(t, "Can you ship by Friday?", first.Text)
	assert.Equal(t, m.customer.Name, first.Sender.Name)
	assert.Equal(t, []uint{m.seller.ID}, m.sink.recipients())
	assert.Equal(t, EventOrderMessage, m.broadcaster.last().Type)

	m.sink.reset()
	_, err = m.service.PostMessage(ctx, actorOf(m.seller), order.ID, "Yes, it ships Thursday.")
	require.NoError(t, err)
	assert.Equal(t, []uint{m.customer.ID}, m.sink.recipients())

	messages, err := m.service.ListMessages(ctx, actorOf(m.admin), order.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, first.ID, messages[0].ID)
	assert.Equal(t, m.seller.ID, messages[1].SenderID)
}

func TestOrderMessages_Rules(t *testing.T) {
	m := newMarketplace(t, OrderServiceOptions{})
	barong := m.product(t, m.seller, "Barong", "100", 5)
	ctx := context.Background()
	order, err := m.service.CreateOrder(ctx, actorOf(m.customer), orderInput(line(barong, 1)))
	require.NoError(t, err)

	_, err = m.service.PostMessage(ctx, actorOf(m.customer), order.ID, "   ")
	requireOrderError(t, err, KindValidation, CodeValidation)

	_, err = m.service.PostMessage(ctx, actorOf(m.customer), order.ID, strings.Repeat("a", MaxMessageLength+1))
	requireOrderError(t, err, KindValidation, CodeValidation)

	_, err = m.service.PostMessage(ctx, actorOf(m.otherSeller), order.ID, "hello")
	requireOrderError(t, err, KindForbidden, CodeForbidden)

	_, err = m.service.ListMessages(ctx, actorOf(m.otherCustomer), order.ID)
	requireOrderError(t, err, KindForbidden, CodeForbidden)

	_, err = m.service.ListMessages(ctx, actorOf(m.customer), 5555)
	requireOrderError(t, err, KindNotFound, CodeOrderNotFound)
}
