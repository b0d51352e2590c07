package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mcdev12/miou/go/internal/models"
)

func TestBuildBatch(t *testing.T) {
	list := []models.Alert{
		{RoomID: "!a", GameID: "g1", UserID: "@a", PlayerName: "Alice", Delay: 5 * time.Minute},
		{RoomID: "!b", GameID: "g1", UserID: "@b", PlayerName: "Bob", Delay: time.Hour},
	}

	batch := buildBatch(list, false)
	assert.Equal(t, 2, batch.Len())
	assert.Equal(t, insertAlertSQL, batch.QueuedQueries[0].SQL)
	assert.Equal(t, int64(60), batch.QueuedQueries[1].Arguments[4])

	batch = buildBatch(list, true)
	assert.Equal(t, overwriteAlertSQL, batch.QueuedQueries[0].SQL)
}
