package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusRankIsMonotonic(t *testing.T) {
	assert.Less(t, StatusSent.Rank(), StatusDelivered.Rank())
	assert.Less(t, StatusDelivered.Rank(), StatusRead.Rank())
	assert.Equal(t, -1, DeliveryStatus("archived").Rank())
}

func TestKindValid(t *testing.T) {
	assert.True(t, KindText.Valid())
	assert.True(t, KindImage.Valid())
	assert.True(t, KindVideo.Valid())
	assert.False(t, MessageKind("sticker").Valid())
	assert.False(t, MessageKind("").Valid())
}

func TestDeletedBy(t *testing.T) {
	m := &Message{DeletedFor: []string{"u1"}}
	assert.True(t, m.DeletedBy("u1"))
	assert.False(t, m.DeletedBy("u2"))
	assert.False(t, (&Message{}).DeletedBy("u1"))
}
