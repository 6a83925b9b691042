package user

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/albapepper/birthday-notifier/internal/event"
)

// The delivery-tracking statements are assembled from registry column names.
// These tests pin the shape: the right columns per event type and the
// conditional guards that make claiming and re-arming atomic.

func TestMarkSentSQL(t *testing.T) {
	q := markSentSQL(event.Birthday)
	assert.Equal(t,
		"UPDATE users SET birthday_sent_status = TRUE, birthday_sent = NOW() WHERE id = $1 AND birthday_sent_status = FALSE",
		q, "the flag = FALSE guard is what makes the first caller win")

	q = markSentSQL(event.Anniversary)
	assert.Contains(t, q, "SET anniversary_sent_status = TRUE, anniversary_sent = NOW()")
	assert.Contains(t, q, "AND anniversary_sent_status = FALSE")
	assert.NotContains(t, q, "birthday")
}

func TestResetRolloverSQL(t *testing.T) {
	q := resetRolloverSQL(event.Birthday)
	assert.Contains(t, q, "SET birthday_sent_status = FALSE")
	assert.Contains(t, q, "birthday_sent_status = TRUE")
	assert.Contains(t, q, "date_part('year', birthday_sent) < date_part('year', NOW())")
	assert.Contains(t, q, "birthday_sent < NOW() - make_interval(secs => $1)",
		"deliveries inside the recovery window must stay claimed across the year boundary")
}

func TestFetchUnsentSQL(t *testing.T) {
	q := fetchUnsentSQL(event.Anniversary)
	assert.Contains(t, q, "WHERE anniversary_sent_status = FALSE")
	assert.Contains(t, q, "anniversary IS NOT NULL")

	q = fetchUnsentSQL(event.Birthday)
	assert.Contains(t, q, "WHERE birthday_sent_status = FALSE")
	assert.Contains(t, q, "birthday IS NOT NULL")
}
